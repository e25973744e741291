// ABOUTME: Authenticated manager API session with lazy login and a single retry on 401.
// ABOUTME: Decodes the manager's data/affected_items envelope into typed records.

package wazuh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	authenticatePath = "/security/user/authenticate"
	maxResponseBytes = 32 << 20
)

// Session is one unit of authenticated work against the manager API.
// Sessions come from Client.Do and must not be used after it returns or
// from more than one goroutine.
type Session struct {
	client    *Client
	transport *http.Transport
	http      *http.Client
	token     token
	closed    bool
}

// Authenticate exchanges the configured credentials for a bearer token.
func (s *Session) Authenticate(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(s.client.baseURL, authenticatePath, nil), nil)
	if err != nil {
		return fmt.Errorf("building authentication request: %w", err)
	}
	req.SetBasicAuth(s.client.username, s.client.password)
	req.Header.Set("Content-Type", "application/json")

	status, body, err := s.roundTrip(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		s.token = token{}
		return &APIError{StatusCode: status, Message: "authentication failed", Body: string(body)}
	}

	var payload struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &APIError{StatusCode: status, Message: "authentication failed", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if payload.Data.Token == "" {
		return &APIError{StatusCode: status, Message: "authentication failed", Err: ErrNoToken}
	}

	s.token = newToken(payload.Data.Token)
	s.client.logger.Info("authenticated with Wazuh manager API", "base_url", s.client.baseURL.String())
	return nil
}

// Get issues an authenticated GET and decodes the JSON body into out.
func (s *Session) Get(ctx context.Context, path string, query url.Values, out any) error {
	return s.request(ctx, http.MethodGet, path, query, nil, out)
}

// request sends an authenticated request. A missing or expired token is
// obtained first. A 401 discards the token, authenticates once and resends
// once; a second failure is returned as is.
func (s *Session) request(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	if s.closed {
		return ErrSessionClosed
	}

	if !s.token.present(s.client.now()) {
		s.token = token{}
		if err := s.Authenticate(ctx); err != nil {
			return err
		}
	}

	status, body, err := s.send(ctx, method, path, query, payload)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		s.client.logger.Warn("Wazuh API token rejected, re-authenticating", "path", path)
		s.token = token{}
		if err := s.Authenticate(ctx); err != nil {
			return err
		}

		status, body, err = s.send(ctx, method, path, query, payload)
		if err != nil {
			return err
		}
		if status < 200 || status > 299 {
			return &APIError{StatusCode: status, Message: "API request failed after re-authentication", Body: string(body)}
		}
	}

	if status < 200 || status > 299 {
		return &APIError{StatusCode: status, Message: "API request failed", Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{StatusCode: status, Message: "invalid JSON response", Err: err}
	}
	return nil
}

// send performs one bearer-authenticated exchange.
func (s *Session) send(ctx context.Context, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint(s.client.baseURL, path, query), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token.value)
	req.Header.Set("Content-Type", "application/json")

	return s.roundTrip(req)
}

// roundTrip executes req and reads the body. Transport failures are reported
// as 503 APIErrors wrapping the cause.
func (s *Session) roundTrip(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, &APIError{StatusCode: http.StatusServiceUnavailable, Message: "connection error", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &APIError{StatusCode: http.StatusServiceUnavailable, Message: "reading response", Err: err}
	}

	s.client.logger.Debug("wazuh request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.StatusCode, body, nil
}

// itemsEnvelope is the manager's standard response shape.
type itemsEnvelope[T any] struct {
	Data struct {
		AffectedItems      []T `json:"affected_items"`
		TotalAffectedItems int `json:"total_affected_items"`
	} `json:"data"`
}

// getItems fetches path and returns data.affected_items in response order.
func getItems[T any](ctx context.Context, s *Session, path string, query url.Values) ([]T, error) {
	var envelope itemsEnvelope[T]
	if err := s.Get(ctx, path, query, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data.AffectedItems == nil {
		return []T{}, nil
	}
	return envelope.Data.AffectedItems, nil
}

// getSingle fetches path and returns the first affected item, or the data
// object itself when the endpoint does not use affected_items.
func getSingle[T any](ctx context.Context, s *Session, path string) (T, error) {
	var zero T
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := s.Get(ctx, path, nil, &envelope); err != nil {
		return zero, err
	}
	return decodeSingle[T](envelope.Data)
}

func decodeSingle[T any](data json.RawMessage) (T, error) {
	var zero T
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return zero, nil
	}

	var wrapped struct {
		AffectedItems []T `json:"affected_items"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.AffectedItems) > 0 {
		return wrapped.AffectedItems[0], nil
	}

	var direct T
	if err := json.Unmarshal(data, &direct); err != nil {
		return zero, &APIError{StatusCode: http.StatusOK, Message: "invalid JSON response", Err: err}
	}
	return direct, nil
}
