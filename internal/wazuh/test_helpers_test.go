// ABOUTME: Fake Wazuh manager used by client tests.
// ABOUTME: Issues tokens, counts calls, and can reject requests with 401 on demand.

package wazuh

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "wazuh-wui"
	testPassword = "s3cret"
)

// fakeManager serves canned JSON bodies by path and tracks authentication.
type fakeManager struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	authStatus    int
	tokenTTL      time.Duration
	reject        int // number of upcoming resource calls to answer with 401
	issued        map[string]bool
	responses     map[string]string
	authCalls     int
	resourceCalls int
	queries       []url.Values
}

func newFakeManager(t *testing.T) *fakeManager {
	t.Helper()
	m := &fakeManager{
		t:          t,
		authStatus: http.StatusOK,
		tokenTTL:   time.Hour,
		issued:     make(map[string]bool),
		responses:  make(map[string]string),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serveHTTP))
	t.Cleanup(m.server.Close)
	return m
}

func (m *fakeManager) serveHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == authenticatePath {
		m.authCalls++
		user, pass, ok := r.BasicAuth()
		if r.Method != http.MethodPost || !ok || user != testUser || pass != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"title":"Unauthorized","detail":"Invalid credentials"}`)
			return
		}
		if m.authStatus != http.StatusOK {
			w.WriteHeader(m.authStatus)
			fmt.Fprint(w, `{"title":"Unavailable"}`)
			return
		}
		tok := signedToken(m.t, time.Now().Add(m.tokenTTL), m.authCalls)
		m.issued[tok] = true
		fmt.Fprintf(w, `{"data":{"token":%q},"error":0}`, tok)
		return
	}

	m.resourceCalls++
	m.queries = append(m.queries, r.URL.Query())

	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !m.issued[bearer] || m.reject > 0 {
		if m.reject > 0 {
			m.reject--
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"title":"Unauthorized","detail":"Invalid token"}`)
		return
	}

	body, ok := m.responses[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"title":"Not Found","detail":"Resource not found"}`)
		return
	}
	fmt.Fprint(w, body)
}

func (m *fakeManager) respond(path, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = body
}

func (m *fakeManager) rejectNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reject = n
}

func (m *fakeManager) counts() (auth, resource int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCalls, m.resourceCalls
}

func (m *fakeManager) lastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(m.t, m.queries)
	return m.queries[len(m.queries)-1]
}

func (m *fakeManager) client(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:  m.server.URL,
		Username: testUser,
		Password: testPassword,
		Timeout:  5 * time.Second,
		Logger:   slog.Default(),
	})
	require.NoError(t, err)
	return client
}

// signedToken mints a JWT the way the manager would; the fake does not
// verify signatures, only membership in the issued set.
func signedToken(t *testing.T, expiresAt time.Time, serial int) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "wazuh",
		"sub": testUser,
		"jti": serial,
		"exp": expiresAt.Unix(),
	}).SignedString([]byte("manager-secret"))
	require.NoError(t, err)
	return tok
}

// items wraps records in the manager's affected_items envelope.
func items(records ...string) string {
	return fmt.Sprintf(`{"data":{"affected_items":[%s],"total_affected_items":%d,"failed_items":[]},"error":0}`,
		strings.Join(records, ","), len(records))
}
