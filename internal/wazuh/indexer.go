// ABOUTME: Indexer search client for Wazuh alert documents.
// ABOUTME: Uses basic auth per request and a connection pool scoped to each search.

package wazuh

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAlertsIndex is the index pattern Wazuh writes alerts to.
const DefaultAlertsIndex = "wazuh-alerts-*"

// IndexerConfig configures an indexer client.
type IndexerConfig struct {
	BaseURL   string // e.g. https://wazuh.example.com:9200
	Username  string
	Password  string
	Index     string
	VerifySSL bool
	Timeout   time.Duration
	Logger    *slog.Logger
}

// IndexerClient searches the Wazuh indexer. It is safe for concurrent use.
type IndexerClient struct {
	baseURL   *url.URL
	username  string
	password  string
	index     string
	tlsConfig *tls.Config
	timeout   time.Duration
	logger    *slog.Logger
}

// NewIndexerClient validates cfg and creates a client.
func NewIndexerClient(cfg IndexerConfig) (*IndexerClient, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	index := strings.Trim(cfg.Index, "/")
	if index == "" {
		index = DefaultAlertsIndex
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &IndexerClient{
		baseURL:   base,
		username:  cfg.Username,
		password:  cfg.Password,
		index:     index,
		tlsConfig: newTLSConfig(cfg.VerifySSL),
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// AlertQuery selects alerts from the indexer, newest first by default.
type AlertQuery struct {
	Limit  int
	Offset int
	Sort   string // "asc" or "desc"
}

// DefaultAlertLimit is used when AlertQuery.Limit is not set.
const DefaultAlertLimit = 100

type searchRequest struct {
	Size  int              `json:"size"`
	From  int              `json:"from,omitempty"`
	Sort  []map[string]any `json:"sort"`
	Query map[string]any   `json:"query"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source Alert  `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchAlerts returns the most recent alerts in index order.
func (c *IndexerClient) SearchAlerts(ctx context.Context, q AlertQuery) ([]Alert, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultAlertLimit
	}
	order := strings.ToLower(q.Sort)
	if order != "asc" {
		order = "desc"
	}

	payload, err := json.Marshal(searchRequest{
		Size:  limit,
		From:  q.Offset,
		Sort:  []map[string]any{{"@timestamp": map[string]string{"order": order}}},
		Query: map[string]any{"match_all": map[string]any{}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(c.baseURL, "/"+c.index+"/_search", nil), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	transport := newTransport(c.tlsConfig)
	defer transport.CloseIdleConnections()
	httpClient := &http.Client{Transport: transport, Timeout: c.timeout}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &APIError{StatusCode: http.StatusServiceUnavailable, Message: "connection error to Wazuh indexer", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{StatusCode: http.StatusServiceUnavailable, Message: "reading indexer response", Err: err}
	}

	c.logger.Debug("indexer search",
		"index", c.index,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "indexer error", Body: string(body)}
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid indexer response", Err: err}
	}

	alerts := make([]Alert, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		alert := hit.Source
		if alert.ID == "" {
			alert.ID = hit.ID
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
