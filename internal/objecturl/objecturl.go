// Package objecturl hands out temporary URLs for uploaded bytes, the server
// side counterpart of a browser object URL. A URL stays resolvable until it
// is revoked.
package objecturl

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrRevoked is returned when looking up a URL that was revoked or never
// created.
var ErrRevoked = errors.New("objecturl: revoked or unknown")

// Blob is the content behind an object URL.
type Blob struct {
	ContentType string
	Data        []byte
}

// Store holds blobs keyed by id. It is safe for concurrent use.
type Store struct {
	prefix string

	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewStore returns a store whose URLs are prefix followed by an id,
// e.g. "/api/icons/".
func NewStore(prefix string) *Store {
	return &Store{prefix: prefix, blobs: make(map[string]Blob)}
}

// Create stores data and returns its URL.
func (s *Store) Create(contentType string, data []byte) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.blobs[id] = Blob{ContentType: contentType, Data: data}
	s.mu.Unlock()

	return s.prefix + id
}

// Lookup resolves an id (the URL without the prefix).
func (s *Store) Lookup(id string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[id]
	if !ok {
		return Blob{}, ErrRevoked
	}
	return b, nil
}

// Revoke releases the blob behind url. Revoking twice, or revoking an empty
// or foreign URL, is a no-op.
func (s *Store) Revoke(url string) {
	id, ok := strings.CutPrefix(url, s.prefix)
	if !ok || id == "" {
		return
	}
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
}

// Len reports how many URLs are live.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
