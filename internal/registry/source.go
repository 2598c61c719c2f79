package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/protrecon/internal/protein"
)

// ErrTransient marks failures worth retrying.
var ErrTransient = errors.New("registry temporarily unavailable")

// MarkTransient wraps err so that errors.Is(err, ErrTransient) holds.
func MarkTransient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Session is one open read of an accession.
type Session interface {
	// Entries reads the entries of the session.
	Entries(ctx context.Context) ([]protein.ExternalEntry, error)

	// Release frees the session. It is called exactly once per opened
	// session.
	Release() error
}

// Source opens sessions against a registry backend.
type Source interface {
	Open(ctx context.Context, accession string) (Session, error)
}

// Fetcher is the contract the resolver depends on.
type Fetcher interface {
	Fetch(ctx context.Context, accession string) ([]protein.ExternalEntry, error)
}

// sliceSession serves entries already in memory.
type sliceSession struct {
	entries []protein.ExternalEntry
	err     error
	release func() error
}

func (s *sliceSession) Entries(ctx context.Context) ([]protein.ExternalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]protein.ExternalEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *sliceSession) Release() error {
	if s.release == nil {
		return nil
	}
	return s.release()
}
