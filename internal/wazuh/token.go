// ABOUTME: Bearer token state for manager API sessions.
// ABOUTME: Reads the JWT expiry without verification so stale tokens are refreshed before use.

package wazuh

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// token is the session's authentication state. The zero value is Absent.
type token struct {
	value     string
	expiresAt time.Time // zero when the token carries no readable exp claim
}

// newToken wraps a bearer token issued by the manager. The signature cannot
// be checked client side, so the claims are parsed unverified and only used
// to learn when the token stops being worth sending.
func newToken(raw string) token {
	t := token{value: raw}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return t
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t.expiresAt = exp.Time
	}
	return t
}

// present reports whether there is a token to send at now. A token whose
// exp has passed counts as absent.
func (t token) present(now time.Time) bool {
	if t.value == "" {
		return false
	}
	return t.expiresAt.IsZero() || now.Before(t.expiresAt)
}
