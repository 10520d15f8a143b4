package storage

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// CookieJar is a first-party cookie store for a single site. Every
// cookie is written with Path "/" and SameSite=Lax; expired cookies read
// as missing.
type CookieJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
	now     func() time.Time
}

// NewCookieJar creates an empty jar.
func NewCookieJar() *CookieJar {
	return &CookieJar{
		cookies: make(map[string]*http.Cookie),
		now:     time.Now,
	}
}

// SetClock replaces the jar's time source.
func (j *CookieJar) SetClock(now func() time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.now = now
}

// SetCookie stores name=value expiring maxAge from now.
func (j *CookieJar) SetCookie(name, value string, maxAge time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies[name] = &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  j.now().Add(maxAge).UTC(),
		SameSite: http.SameSiteLaxMode,
	}
}

// Cookie returns the live cookie called name, or nil.
func (j *CookieJar) Cookie(name string) *http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return nil
	}
	if !c.Expires.IsZero() && !j.now().Before(c.Expires) {
		delete(j.cookies, name)
		return nil
	}
	cp := *c
	return &cp
}

// Value returns the value of the live cookie called name, or "".
func (j *CookieJar) Value(name string) string {
	if c := j.Cookie(name); c != nil {
		return c.Value
	}
	return ""
}

// Remove deletes the cookie called name.
func (j *CookieJar) Remove(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.cookies, name)
}

// Clear drops every cookie.
func (j *CookieJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = make(map[string]*http.Cookie)
}

// Scoped returns a Backend view of the jar that writes cookies with the
// given lifetime.
func (j *CookieJar) Scoped(maxAge time.Duration) Backend {
	return &scopedJar{jar: j, maxAge: maxAge}
}

type scopedJar struct {
	jar    *CookieJar
	maxAge time.Duration
}

func (s *scopedJar) Get(key string) (string, error) { return s.jar.Value(key), nil }

func (s *scopedJar) Set(key, value string) error {
	s.jar.SetCookie(key, value, s.maxAge)
	return nil
}

func (s *scopedJar) Delete(key string) error {
	s.jar.Remove(key)
	return nil
}

type cookieRecord struct {
	Name    string    `yaml:"name"`
	Value   string    `yaml:"value"`
	Path    string    `yaml:"path"`
	Expires time.Time `yaml:"expires"`
}

// Save writes the live cookies to path as YAML.
func (j *CookieJar) Save(path string) error {
	j.mu.Lock()
	now := j.now()
	records := make([]cookieRecord, 0, len(j.cookies))
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && !now.Before(c.Expires) {
			continue
		}
		records = append(records, cookieRecord{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	j.mu.Unlock()
	sort.Slice(records, func(a, b int) bool { return records[a].Name < records[b].Name })

	out, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file %s: %w", path, err)
	}
	return nil
}

// LoadCookieJar reads a jar saved by Save. A missing file yields an
// empty jar.
func LoadCookieJar(path string) (*CookieJar, error) {
	j := NewCookieJar()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file %s: %w", path, err)
	}
	var records []cookieRecord
	if err := yaml.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", path, err)
	}
	for _, r := range records {
		path := r.Path
		if path == "" {
			path = "/"
		}
		j.cookies[r.Name] = &http.Cookie{
			Name:     r.Name,
			Value:    r.Value,
			Path:     path,
			Expires:  r.Expires,
			SameSite: http.SameSiteLaxMode,
		}
	}
	return j, nil
}
