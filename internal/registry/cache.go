package registry

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/protrecon/internal/protein"
)

// CachedSource keeps recent successful reads in an LRU cache. Failed reads
// are never cached.
type CachedSource struct {
	next  Source
	cache *lru.Cache[string, []protein.ExternalEntry]
}

// NewCachedSource wraps next with a cache of size entries.
func NewCachedSource(next Source, size int) (*CachedSource, error) {
	cache, err := lru.New[string, []protein.ExternalEntry](size)
	if err != nil {
		return nil, fmt.Errorf("registry cache: %w", err)
	}
	return &CachedSource{next: next, cache: cache}, nil
}

// Open implements Source.
func (c *CachedSource) Open(ctx context.Context, accession string) (Session, error) {
	if entries, ok := c.cache.Get(accession); ok {
		return &sliceSession{entries: entries}, nil
	}
	inner, err := c.next.Open(ctx, accession)
	if err != nil {
		return nil, err
	}
	return &cachingSession{inner: inner, accession: accession, cache: c.cache}, nil
}

// Purge drops every cached read.
func (c *CachedSource) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached accessions.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}

type cachingSession struct {
	inner     Session
	accession string
	cache     *lru.Cache[string, []protein.ExternalEntry]
}

func (s *cachingSession) Entries(ctx context.Context) ([]protein.ExternalEntry, error) {
	entries, err := s.inner.Entries(ctx)
	if err != nil {
		return nil, err
	}
	stored := make([]protein.ExternalEntry, len(entries))
	copy(stored, entries)
	s.cache.Add(s.accession, stored)
	return entries, nil
}

func (s *cachingSession) Release() error {
	return s.inner.Release()
}
