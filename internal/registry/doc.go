// Package registry fetches entries from the external protein registry.
//
// A Source opens a Session per accession; the Client reads the session and
// always releases it, on every exit path, so caching layers beneath it never
// keep a session open. Transient failures (errors wrapping ErrTransient) are
// retried at a fixed interval up to a ceiling; past the ceiling Fetch returns
// a transient-remote protein.ReconciliationError and no entries.
//
// Sources:
//   - UniProtSource: UniProt REST search behind a circuit breaker
//   - CachedSource: LRU cache in front of another source
//   - StaticSource: in-memory entries for tests, fixtures and dry runs
package registry
