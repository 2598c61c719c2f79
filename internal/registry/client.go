package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/protrecon/internal/protein"
)

// Defaults for the retry loop.
const (
	DefaultMaxAttempts   = 100
	DefaultRetryInterval = 60 * time.Second
)

// ErrInconsistentResult is returned when a fetch result breaks the registry
// invariants (repeated primary accession, secondary overlapping a primary).
var ErrInconsistentResult = errors.New("inconsistent registry result")

// Observer receives one call per fetch attempt. result is "ok", "transient"
// or "error".
type Observer interface {
	RegistryAttempt(result string)
}

// Client fetches entries with bounded fixed-interval retry.
type Client struct {
	source      Source
	maxAttempts int
	interval    time.Duration
	logger      *slog.Logger
	observer    Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMaxAttempts sets the retry ceiling (total attempts, not retries).
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the fixed sleep between attempts.
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver attaches an attempt observer (metrics).
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client reading from source.
func NewClient(source Source, opts ...ClientOption) *Client {
	c := &Client{
		source:      source,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultRetryInterval,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the registry entries for accession. The result is never nil;
// an empty slice means the registry has no entry.
func (c *Client) Fetch(ctx context.Context, accession string) ([]protein.ExternalEntry, error) {
	var entries []protein.ExternalEntry
	attempts := 0

	op := func() error {
		attempts++
		got, err := c.fetchOnce(ctx, accession)
		if err == nil {
			c.observe("ok")
			entries = got
			return nil
		}
		if errors.Is(err, ErrTransient) {
			c.observe("transient")
			return err
		}
		c.observe("error")
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), uint64(c.maxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("registry fetch failed, retrying",
			"accession", accession,
			"attempt", attempts,
			"max_attempts", c.maxAttempts,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if errors.Is(err, ErrTransient) {
			return nil, protein.NewTransientError(accession, attempts, err)
		}
		return nil, fmt.Errorf("fetch %s: %w", accession, err)
	}

	if err := validateEntries(entries); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", accession, err)
	}
	if entries == nil {
		entries = []protein.ExternalEntry{}
	}
	return entries, nil
}

// fetchOnce performs open, read, release. Release runs on every path.
func (c *Client) fetchOnce(ctx context.Context, accession string) (entries []protein.ExternalEntry, err error) {
	session, err := c.source.Open(ctx, accession)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := session.Release(); rerr != nil {
			c.logger.Warn("registry session release failed", "accession", accession, "error", rerr)
		}
	}()
	return session.Entries(ctx)
}

func (c *Client) observe(result string) {
	if c.observer != nil {
		c.observer.RegistryAttempt(result)
	}
}

// validateEntries checks the per-result invariants.
func validateEntries(entries []protein.ExternalEntry) error {
	primaries := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.PrimaryAccession == "" {
			return fmt.Errorf("%w: entry without primary accession", ErrInconsistentResult)
		}
		if primaries[e.PrimaryAccession] {
			return fmt.Errorf("%w: primary accession %s repeated", ErrInconsistentResult, e.PrimaryAccession)
		}
		primaries[e.PrimaryAccession] = true
	}
	for _, e := range entries {
		for _, s := range e.SecondaryAccessions {
			if primaries[s] {
				return fmt.Errorf("%w: secondary %s of %s is a primary accession", ErrInconsistentResult, s, e.PrimaryAccession)
			}
		}
	}
	return nil
}
