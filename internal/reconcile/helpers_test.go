package reconcile

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/protrecon/internal/protein"
	"github.com/roach88/protrecon/internal/registry"
	"github.com/roach88/protrecon/internal/resolve"
	"github.com/roach88/protrecon/internal/store"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// recorder collects outcomes and repair requests in delivery order.
type recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	repairs  []RepairRequest
}

func (r *recorder) Record(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *recorder) Repair(_ context.Context, req RepairRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repairs = append(r.repairs, req)
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.outcomes))
	for i, o := range r.outcomes {
		out[i] = o.RecordID + " " + string(o.Kind)
	}
	return out
}

func (r *recorder) terminalCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, o := range r.outcomes {
		if o.Terminal() {
			counts[o.RecordID]++
		}
	}
	return counts
}

func (r *recorder) find(recordID string, kind OutcomeKind) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		if o.RecordID == recordID && o.Kind == kind {
			return o, true
		}
	}
	return Outcome{}, false
}

// fixture wires a driver to a SQLite store and a static registry.
type fixture struct {
	t        *testing.T
	store    *store.Store
	source   *registry.StaticSource
	recorder *recorder
	cfg      Config
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "recon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{
		t:        t,
		store:    s,
		source:   registry.NewStaticSource(),
		recorder: &recorder{},
		cfg:      DefaultConfig(),
		clock:    baseTime,
	}
}

func (f *fixture) resolver() Resolver {
	client := registry.NewClient(f.source,
		registry.WithMaxAttempts(3),
		registry.WithRetryInterval(0),
		registry.WithLogger(discardLogger),
	)
	return resolve.New(client, resolve.WithLogger(discardLogger))
}

func (f *fixture) driver(opts ...Option) *Driver {
	return f.driverFor(f.resolver(), opts...)
}

func (f *fixture) driverFor(resolver Resolver, opts ...Option) *Driver {
	base := []Option{
		WithConfig(f.cfg),
		WithAuditor(f.recorder),
		WithRangeRepairer(f.recorder),
		WithIDGenerator(NewSequenceGenerator("gen")),
		WithNow(func() time.Time { return baseTime.Add(time.Hour) }),
		WithLogger(discardLogger),
	}
	return New(f.store, resolver, append(base, opts...)...)
}

// primary saves a primary record. Records are created one minute apart in
// call order.
func (f *fixture) primary(id, accession, sequence string, ps ...protein.Participation) *protein.CuratedRecord {
	f.t.Helper()
	r := protein.NewRecord(id, protein.KindPrimary)
	r.ShortLabel = id
	r.TaxID = 9606
	r.Sequence = sequence
	r.CreatedAt = f.tick()
	if accession != "" {
		_, err := r.AddXref(protein.IdentityXref(accession))
		require.NoError(f.t, err)
	}
	for _, p := range ps {
		require.NoError(f.t, r.AddParticipation(p))
	}
	require.NoError(f.t, f.store.Save(context.Background(), r))
	return r
}

func (f *fixture) isoform(id, accession, parent, sequence string) *protein.CuratedRecord {
	f.t.Helper()
	r := protein.NewRecord(id, protein.KindIsoform)
	r.ShortLabel = id
	r.TaxID = 9606
	r.Sequence = sequence
	r.CreatedAt = f.tick()
	_, err := r.AddXref(protein.IdentityXref(accession))
	require.NoError(f.t, err)
	require.NoError(f.t, r.AddParentLink(protein.ParentLink{Kind: protein.ParentIsoform, ParentID: parent}))
	require.NoError(f.t, f.store.Save(context.Background(), r))
	return r
}

func (f *fixture) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fixture) get(id string) *protein.CuratedRecord {
	f.t.Helper()
	r, err := f.store.Get(context.Background(), id)
	require.NoError(f.t, err)
	return r
}

func entry(accession string, taxID int, sequence string) protein.ExternalEntry {
	return protein.ExternalEntry{PrimaryAccession: accession, TaxID: taxID, Sequence: sequence}
}

func participation(id, interaction string) protein.Participation {
	return protein.Participation{
		ID:                id,
		InteractionID:     interaction,
		Stoichiometry:     1,
		BiologicalRole:    "unspecified role",
		ExperimentalRoles: []string{"prey"},
		DetectionMethods:  []string{"MI:0018"},
	}
}

// stoppingResolver requests a stop on its first call.
type stoppingResolver struct {
	Resolver
	driver *Driver
	once   sync.Once
}

func (s *stoppingResolver) Resolve(ctx context.Context, accession string, taxID int) (protein.MatchOutcome, error) {
	s.once.Do(s.driver.RequestStop)
	return s.Resolver.Resolve(ctx, accession, taxID)
}
