// ABOUTME: Tests for manager API sessions: lazy authentication, token reuse, and the 401 retry bound.
// ABOUTME: Also covers error mapping, TLS settings, and session release.

package wazuh

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentsBody = `{"id":"000","name":"manager","status":"active"}`

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing base URL", Config{Username: "u"}},
		{"bad scheme", Config{BaseURL: "ftp://wazuh:55000", Username: "u"}},
		{"missing host", Config{BaseURL: "https://", Username: "u"}},
		{"missing username", Config{BaseURL: "https://wazuh:55000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("trailing slash is trimmed", func(t *testing.T) {
		client, err := NewClient(Config{BaseURL: "https://wazuh:55000/", Username: "u"})
		require.NoError(t, err)
		assert.Equal(t, "https://wazuh:55000", client.BaseURL())
	})
}

func TestSession_LazyAuthentication(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", items(agentsBody))
	client := manager.client(t)

	auth, resource := manager.counts()
	assert.Zero(t, auth, "creating a client must not authenticate")
	assert.Zero(t, resource)

	ctx := context.Background()
	for range 3 {
		err := client.Do(ctx, func(s *Session) error {
			agents, err := s.Agents(ctx, AgentQuery{})
			if err != nil {
				return err
			}
			assert.Len(t, agents, 1)
			return nil
		})
		require.NoError(t, err)
	}

	auth, resource = manager.counts()
	assert.Equal(t, 1, auth, "token should be reused across sessions")
	assert.Equal(t, 3, resource)
}

func TestSession_RetriesOnceAfter401(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", items(agentsBody))
	client := manager.client(t)
	ctx := context.Background()

	manager.rejectNext(1)
	err := client.Do(ctx, func(s *Session) error {
		_, err := s.Agents(ctx, AgentQuery{})
		return err
	})
	require.NoError(t, err)

	auth, resource := manager.counts()
	assert.Equal(t, 2, auth)
	assert.Equal(t, 2, resource)
}

func TestSession_SecondFailureIsSurfaced(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", items(agentsBody))
	client := manager.client(t)
	ctx := context.Background()

	manager.rejectNext(5)
	err := client.Do(ctx, func(s *Session) error {
		_, err := s.Agents(ctx, AgentQuery{})
		return err
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "after re-authentication")

	auth, resource := manager.counts()
	assert.Equal(t, 2, auth, "exactly one re-authentication")
	assert.Equal(t, 2, resource, "no third attempt")
}

func TestSession_AuthenticationFailure(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", items(agentsBody))
	manager.authStatus = http.StatusForbidden
	client := manager.client(t)
	ctx := context.Background()

	err := client.Do(ctx, func(s *Session) error {
		_, err := s.Agents(ctx, AgentQuery{})
		return err
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "authentication failed")

	_, resource := manager.counts()
	assert.Zero(t, resource)

	t.Run("wrong credentials", func(t *testing.T) {
		manager := newFakeManager(t)
		client, err := NewClient(Config{BaseURL: manager.server.URL, Username: testUser, Password: "nope"})
		require.NoError(t, err)

		err = client.Do(ctx, func(s *Session) error { return s.Authenticate(ctx) })
		assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	})
}

func TestSession_MissingTokenInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{},"error":0}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, Username: testUser})
	require.NoError(t, err)

	err = client.Do(context.Background(), func(s *Session) error {
		return s.Authenticate(context.Background())
	})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSession_ExpiredTokenIsRefreshedBeforeUse(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", items(agentsBody))
	client := manager.client(t)
	ctx := context.Background()

	call := func() error {
		return client.Do(ctx, func(s *Session) error {
			_, err := s.Agents(ctx, AgentQuery{})
			return err
		})
	}

	require.NoError(t, call())
	client.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, call())

	auth, resource := manager.counts()
	assert.Equal(t, 2, auth, "expired token must be replaced without a 401 round trip")
	assert.Equal(t, 2, resource)
}

func TestSession_NotFound(t *testing.T) {
	manager := newFakeManager(t)
	client := manager.client(t)
	ctx := context.Background()

	err := client.Do(ctx, func(s *Session) error {
		_, err := s.Processes(ctx, "042", ProcessQuery{})
		return err
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Contains(t, err.Error(), "Resource not found")
}

func TestSession_ConnectionError(t *testing.T) {
	manager := newFakeManager(t)
	client := manager.client(t)
	manager.server.Close()

	err := client.Do(context.Background(), func(s *Session) error {
		_, err := s.Agents(context.Background(), AgentQuery{})
		return err
	})
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.False(t, IsNotFound(err))
}

func TestSession_InvalidJSON(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", `{"data":`)
	client := manager.client(t)

	err := client.Do(context.Background(), func(s *Session) error {
		_, err := s.Agents(context.Background(), AgentQuery{})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON response")
}

func TestClient_DoReleasesSession(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", items(agentsBody))
	client := manager.client(t)
	ctx := context.Background()

	var leaked *Session
	require.NoError(t, client.Do(ctx, func(s *Session) error {
		leaked = s
		return s.Authenticate(ctx)
	}))

	_, err := leaked.Agents(ctx, AgentQuery{})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, leaked.Authenticate(ctx), ErrSessionClosed)

	t.Run("released on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := client.Do(ctx, func(s *Session) error {
			leaked = s
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.True(t, leaked.closed)
	})

	t.Run("released on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = client.Do(ctx, func(s *Session) error {
				leaked = s
				panic("unit of work failed")
			})
		})
		assert.True(t, leaked.closed)

		require.NoError(t, client.Do(ctx, func(s *Session) error {
			_, err := s.Agents(ctx, AgentQuery{})
			return err
		}))
	})

	t.Run("cancelled context skips the work", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		ran := false
		err := client.Do(cancelled, func(*Session) error {
			ran = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ran)
	})
}

func TestTLSConfig(t *testing.T) {
	t.Run("verification disabled keeps TLS 1.2 floor", func(t *testing.T) {
		cfg := newTLSConfig(false)
		assert.True(t, cfg.InsecureSkipVerify)
		assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	})

	t.Run("verification enabled", func(t *testing.T) {
		cfg := newTLSConfig(true)
		assert.False(t, cfg.InsecureSkipVerify)
		assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	})

	t.Run("transport gets its own copy", func(t *testing.T) {
		cfg := newTLSConfig(true)
		transport := newTransport(cfg)
		require.NotNil(t, transport.TLSClientConfig)
		assert.NotSame(t, cfg, transport.TLSClientConfig)
		assert.Equal(t, uint16(tls.VersionTLS12), transport.TLSClientConfig.MinVersion)
	})
}

func TestSession_SelfSignedCertificate(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == authenticatePath {
			_, _ = w.Write([]byte(`{"data":{"token":"opaque-token"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"title":"Wazuh API REST","api_version":"4.8.0","hostname":"wazuh-manager"}}`))
	}))
	defer server.Close()
	ctx := context.Background()

	t.Run("rejected when verifying", func(t *testing.T) {
		client, err := NewClient(Config{BaseURL: server.URL, Username: testUser, VerifySSL: true})
		require.NoError(t, err)
		err = client.Do(ctx, func(s *Session) error { return s.Authenticate(ctx) })
		assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	})

	t.Run("accepted when verification is off", func(t *testing.T) {
		client, err := NewClient(Config{BaseURL: server.URL, Username: testUser, VerifySSL: false})
		require.NoError(t, err)

		var info APIInfo
		err = client.Do(ctx, func(s *Session) error {
			var err error
			info, err = s.Info(ctx)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "4.8.0", info.APIVersion)
		assert.Equal(t, "wazuh-manager", info.Hostname)
	})
}

func TestToken(t *testing.T) {
	now := time.Now()

	t.Run("zero value is absent", func(t *testing.T) {
		assert.False(t, token{}.present(now))
	})

	t.Run("opaque token never expires client side", func(t *testing.T) {
		tok := newToken("not-a-jwt")
		assert.True(t, tok.expiresAt.IsZero())
		assert.True(t, tok.present(now))
	})

	t.Run("jwt expiry is honoured", func(t *testing.T) {
		tok := newToken(signedToken(t, now.Add(time.Minute), 1))
		assert.True(t, tok.present(now))
		assert.False(t, tok.present(now.Add(2*time.Minute)))
	})

	t.Run("already expired jwt is absent", func(t *testing.T) {
		tok := newToken(signedToken(t, now.Add(-time.Minute), 1))
		assert.False(t, tok.present(now))
	})
}

func TestAPIError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &APIError{StatusCode: 503, Message: "connection error", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection error: dial tcp: connection refused", err.Error())

	withBody := &APIError{StatusCode: 400, Message: "API request failed", Body: "bad"}
	assert.Equal(t, "API request failed: 400 - bad", withBody.Error())

	assert.Equal(t, 0, StatusCode(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}
