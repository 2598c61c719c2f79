package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/protrecon/internal/protein"
)

// StaticSource serves a fixed set of entries. An accession matches an entry
// when it is the entry's primary or secondary accession, or the accession of
// one of its variants. Matches are returned in insertion order.
type StaticSource struct {
	mu       sync.Mutex
	entries  []protein.ExternalEntry
	failures map[string]int
	opened   int
	released int
}

// NewStaticSource creates a source holding entries.
func NewStaticSource(entries ...protein.ExternalEntry) *StaticSource {
	s := &StaticSource{failures: make(map[string]int)}
	s.Add(entries...)
	return s
}

// Add registers more entries.
func (s *StaticSource) Add(entries ...protein.ExternalEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
}

// FailNext makes the next n reads of accession fail transiently. A negative
// n fails every read.
func (s *StaticSource) FailNext(accession string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[accession] = n
}

// Opened returns how many sessions were opened.
func (s *StaticSource) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Released returns how many sessions were released.
func (s *StaticSource) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Open implements Source.
func (s *StaticSource) Open(ctx context.Context, accession string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++

	session := &sliceSession{release: s.release}
	if n := s.failures[accession]; n != 0 {
		if n > 0 {
			s.failures[accession] = n - 1
		}
		session.err = MarkTransient(errors.New("simulated registry outage"))
		return session, nil
	}
	session.entries = s.lookup(accession)
	return session, nil
}

func (s *StaticSource) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

func (s *StaticSource) lookup(accession string) []protein.ExternalEntry {
	out := []protein.ExternalEntry{}
	for _, e := range s.entries {
		if e.PrimaryAccession == accession || e.HasSecondary(accession) {
			out = append(out, e)
			continue
		}
		if _, ok := e.Variant(accession); ok {
			out = append(out, e)
		}
	}
	return out
}
