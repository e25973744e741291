// ABOUTME: Manager API client handing out scoped, authenticated sessions.
// ABOUTME: Each session owns its own HTTP transport, released when the unit of work ends.

package wazuh

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a single HTTP exchange with the manager or indexer.
const DefaultTimeout = 30 * time.Second

// Config configures a manager API client.
type Config struct {
	BaseURL   string // e.g. https://wazuh.example.com:55000
	Username  string
	Password  string
	VerifySSL bool
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client talks to the Wazuh manager REST API. It is safe for concurrent use;
// the Sessions it hands out are not.
type Client struct {
	baseURL   *url.URL
	username  string
	password  string
	tlsConfig *tls.Config
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	token token
}

// NewClient validates cfg and creates a client. No network traffic happens
// until the first session makes a request.
func NewClient(cfg Config) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.VerifySSL && base.Scheme == "https" {
		logger.Warn("TLS certificate verification is disabled", "base_url", base.String())
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:   base,
		username:  cfg.Username,
		password:  cfg.Password,
		tlsConfig: newTLSConfig(cfg.VerifySSL),
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// BaseURL returns the manager address the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do opens a session, runs fn with it and releases the session's connections
// on every exit path, including panics. The session starts from the last
// token the client obtained and hands its final token back on release.
func (c *Client) Do(ctx context.Context, fn func(*Session) error) error {
	s := c.openSession()
	defer c.releaseSession(s)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

func (c *Client) openSession() *Session {
	transport := newTransport(c.tlsConfig)

	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()

	return &Session{
		client:    c,
		transport: transport,
		http:      &http.Client{Transport: transport, Timeout: c.timeout},
		token:     tok,
	}
}

func (c *Client) releaseSession(s *Session) {
	s.closed = true
	s.transport.CloseIdleConnections()

	c.mu.Lock()
	c.token = s.token
	c.mu.Unlock()

	c.logger.Debug("wazuh session released", "authenticated", s.token.value != "")
}

// parseBaseURL accepts http and https URLs without query or fragment.
func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: base URL scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: base URL has no host", ErrInvalidConfig)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// endpoint resolves path and query against base.
func endpoint(base *url.URL, path string, query url.Values) string {
	u := *base
	u.Path = base.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// newTLSConfig always enforces TLS 1.2 as the floor, whether or not
// certificates are verified.
func newTLSConfig(verify bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verify,
	}
}

// newTransport returns a fresh connection pool using cfg.
func newTransport(cfg *tls.Config) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = cfg.Clone()
	return transport
}
