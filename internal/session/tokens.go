package session

import (
	"time"

	"menuvista-session/internal/storage"
)

// CookiePrefix prefixes the per-menu session cookie name.
const CookiePrefix = "mvsession_"

// DefaultTokenMaxAge is the client-side lifetime of a session cookie.
const DefaultTokenMaxAge = 7 * 24 * time.Hour

// CookieName returns the cookie that holds the session token of a menu.
func CookieName(shortCode string) string {
	return CookiePrefix + shortCode
}

// TokenStore keeps one session token per menu short code in a cookie.
type TokenStore struct {
	jar    *storage.CookieJar
	maxAge time.Duration
}

// NewTokenStore creates a token store over jar. A non-positive maxAge
// uses DefaultTokenMaxAge.
func NewTokenStore(jar *storage.CookieJar, maxAge time.Duration) *TokenStore {
	if maxAge <= 0 {
		maxAge = DefaultTokenMaxAge
	}
	return &TokenStore{jar: jar, maxAge: maxAge}
}

// Get returns the stored token for shortCode, or "".
func (t *TokenStore) Get(shortCode string) string {
	return t.jar.Value(CookieName(shortCode))
}

// Set overwrites the token for shortCode and restarts its lifetime.
func (t *TokenStore) Set(shortCode, token string) {
	t.jar.SetCookie(CookieName(shortCode), token, t.maxAge)
}
