// Package identity resolves the stable per-device identifier a diner
// client presents when negotiating menu sessions.
package identity

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"menuvista-session/internal/storage"
)

// Key is the storage key, and cookie name, of the device identifier.
const Key = "mv_device_id"

// CookieMaxAge is the lifetime of the device cookie.
const CookieMaxAge = 365 * 24 * time.Hour

// Resolver reads and self-heals the device identifier across three
// redundant backends, in priority order cookie, durable, session.
type Resolver struct {
	backends [3]storage.Backend
	names    [3]string
	generate func() (string, error)
}

// NewResolver builds a resolver over the three backends. The cookie
// backend should already carry the device cookie lifetime (see
// storage.CookieJar.Scoped).
func NewResolver(cookie, durable, session storage.Backend) *Resolver {
	return &Resolver{
		backends: [3]storage.Backend{cookie, durable, session},
		names:    [3]string{"cookie", "durable", "session"},
		generate: NewID,
	}
}

// NewID returns a fresh RFC 4122 version 4 identifier in canonical
// lowercase form.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// DeviceID returns the resolved identifier, generating and persisting
// one when no backend holds a value. It returns "" when no identifier
// could be produced.
//
// A single unavailable backend makes the whole call return "": that only
// happens outside a browser-like environment, where no identifier should
// be sent at all. A backend whose read fails for another reason is
// skipped for resolution and is not written to.
func (r *Resolver) DeviceID() string {
	var values [3]string
	var readFailed [3]bool
	for i, b := range r.backends {
		if b == nil {
			return ""
		}
		v, err := b.Get(Key)
		if errors.Is(err, storage.ErrUnavailable) {
			return ""
		}
		if err != nil {
			log.Printf("Warning: reading device id from %s storage: %v", r.names[i], err)
			readFailed[i] = true
			continue
		}
		values[i] = v
	}

	resolved := ""
	for _, v := range values {
		if v != "" {
			resolved = v
			break
		}
	}

	if resolved == "" {
		id, err := r.generate()
		if err != nil {
			log.Printf("Warning: generating device id: %v", err)
			return ""
		}
		resolved = id
	}

	for i, v := range values {
		switch {
		case readFailed[i]:
		case v == "":
			if err := r.backends[i].Set(Key, resolved); err != nil {
				log.Printf("Warning: backfilling device id into %s storage: %v", r.names[i], err)
			}
		case v != resolved:
			// Left as is; the higher-priority value wins for this call only.
			log.Printf("Warning: %s storage holds a different device id than the resolved one", r.names[i])
		}
	}
	return resolved
}
