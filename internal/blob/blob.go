// Package blob keeps in-memory byte blobs behind opaque URLs, the way a
// browser's object URLs work, and can serve them over HTTP.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultPrefix is the URL prefix used when the store is not served over
// HTTP.
const DefaultPrefix = "blob:officeconv/"

// ErrNotFound is returned for unknown or revoked URLs.
var ErrNotFound = errors.New("blob not found")

type entry struct {
	data     []byte
	mimeType string
}

// Store is a concurrency-safe blob registry.
type Store struct {
	prefix string
	client *http.Client

	mu    sync.RWMutex
	blobs map[string]entry
}

// NewStore returns a store minting URLs under prefix. An http(s) prefix such
// as "http://localhost:8080/blob/" makes the URLs dereferenceable through
// Handler; an empty prefix uses DefaultPrefix.
func NewStore(prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		prefix: prefix,
		client: http.DefaultClient,
		blobs:  make(map[string]entry),
	}
}

// CreateObjectURL stores a copy of data and returns its URL.
func (s *Store) CreateObjectURL(_ context.Context, data []byte, mimeType string) (string, error) {
	id := uuid.NewString()
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	s.mu.Lock()
	s.blobs[id] = entry{data: append([]byte(nil), data...), mimeType: mimeType}
	s.mu.Unlock()

	return s.prefix + id, nil
}

// Open returns the bytes behind url. URLs of this store are resolved in
// memory; other http(s) URLs are fetched.
func (s *Store) Open(ctx context.Context, url string) ([]byte, error) {
	if id, ok := strings.CutPrefix(url, s.prefix); ok {
		e, found := s.lookup(id)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		return append([]byte(nil), e.data...), nil
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return s.fetch(ctx, url)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
}

func (s *Store) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blob: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch blob: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// RevokeObjectURL releases the blob behind url. Unknown URLs are ignored.
func (s *Store) RevokeObjectURL(url string) {
	id, ok := strings.CutPrefix(url, s.prefix)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
}

// Len reports how many blobs are live.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *Store) lookup(id string) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blobs[id]
	return e, ok
}

// Handler serves GET /blob/{id}.
func (s *Store) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /blob/{id}", func(w http.ResponseWriter, r *http.Request) {
		e, ok := s.lookup(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", e.mimeType)
		_, _ = w.Write(e.data)
	})
	return mux
}
