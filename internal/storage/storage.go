// Package storage provides the key/value backends a diner client keeps
// its identity and session tokens in: a cookie jar, a durable store and
// a session-scoped store.
package storage

import "errors"

// ErrUnavailable is returned by a backend that does not exist in the
// current environment.
var ErrUnavailable = errors.New("storage: backend unavailable")

// Backend is a string key/value store. Get returns "" with a nil error
// for a missing key.
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Unavailable is a Backend whose every call fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Get(string) (string, error) { return "", ErrUnavailable }
func (Unavailable) Set(string, string) error   { return ErrUnavailable }
func (Unavailable) Delete(string) error        { return ErrUnavailable }
