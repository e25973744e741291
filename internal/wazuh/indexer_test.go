// ABOUTME: Tests for the indexer alert search client.
// ABOUTME: Verifies the search body, basic auth, hit decoding, and error mapping.

package wazuh

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchAlerts(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "admin-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[
			{"_id":"doc-1","_source":{"id":"1714557600.123","timestamp":"2024-05-01T10:00:00.000+0000","agent":{"id":"001","name":"web-01","ip":"10.0.0.5"},"rule":{"id":"5710","level":5,"description":"sshd: non-existent user"},"manager":{"name":"wazuh-manager"},"location":"/var/log/auth.log","full_log":"Failed password"}},
			{"_id":"doc-2","_source":{"timestamp":"2024-05-01T09:59:00.000+0000","rule":{"id":100001,"level":12,"description":"custom"}}}
		]}}`))
	}))
	defer server.Close()

	client, err := NewIndexerClient(IndexerConfig{BaseURL: server.URL, Username: "admin", Password: "admin-pass"})
	require.NoError(t, err)

	alerts, err := client.SearchAlerts(context.Background(), AlertQuery{Limit: 25})
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "/"+DefaultAlertsIndex+"/_search", gotPath)
	assert.Equal(t, float64(25), gotBody["size"])
	assert.NotContains(t, gotBody, "from")
	assert.Equal(t, []any{map[string]any{"@timestamp": map[string]any{"order": "desc"}}}, gotBody["sort"])
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, gotBody["query"])

	assert.Equal(t, "1714557600.123", alerts[0].ID)
	require.NotNil(t, alerts[0].Agent)
	assert.Equal(t, "web-01", alerts[0].Agent.Name)
	require.NotNil(t, alerts[0].Rule)
	assert.Equal(t, FlexString("5710"), alerts[0].Rule.ID)
	assert.Equal(t, "wazuh-manager", alerts[0].Manager.Name)
	assert.Nil(t, alerts[0].Cluster)

	assert.Equal(t, "doc-2", alerts[1].ID, "document id is used when the alert has none")
	assert.Equal(t, FlexString("100001"), alerts[1].Rule.ID)
	assert.Equal(t, 12, alerts[1].Rule.Level)
}

func TestSearchAlerts_Options(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	defer server.Close()

	client, err := NewIndexerClient(IndexerConfig{BaseURL: server.URL, Username: "admin", Index: "/custom-alerts-*/"})
	require.NoError(t, err)

	alerts, err := client.SearchAlerts(context.Background(), AlertQuery{Offset: 10, Sort: "ASC"})
	require.NoError(t, err)
	assert.Empty(t, alerts)

	assert.Equal(t, "/custom-alerts-*/_search", gotPath)
	assert.Equal(t, float64(DefaultAlertLimit), gotBody["size"])
	assert.Equal(t, float64(10), gotBody["from"])
	assert.Equal(t, []any{map[string]any{"@timestamp": map[string]any{"order": "asc"}}}, gotBody["sort"])
}

func TestSearchAlerts_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
		}))
		defer server.Close()

		client, err := NewIndexerClient(IndexerConfig{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.SearchAlerts(context.Background(), AlertQuery{})
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "index_not_found_exception")
	})

	t.Run("connection failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client, err := NewIndexerClient(IndexerConfig{BaseURL: url})
		require.NoError(t, err)

		_, err = client.SearchAlerts(context.Background(), AlertQuery{})
		assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	})

	t.Run("invalid body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer server.Close()

		client, err := NewIndexerClient(IndexerConfig{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.SearchAlerts(context.Background(), AlertQuery{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid indexer response")
	})

	t.Run("bad base URL", func(t *testing.T) {
		_, err := NewIndexerClient(IndexerConfig{BaseURL: "wazuh:9200"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
