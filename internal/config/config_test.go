package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50, cfg.Reconcile.BatchSize)
	assert.Equal(t, 0.35, cfg.Reconcile.ConservationThreshold)
	assert.Equal(t, 100, cfg.Registry.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Registry.RetryInterval)
	assert.False(t, cfg.Reconcile.AutoFixDeadAccessions)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
store:
  path: /var/lib/protrecon.db
registry:
  retry_interval: 5s
  max_attempts: 3
reconcile:
  batch_size: 10
  conservation_threshold: 0.5
  auto_fix_dead_accessions: true
  canonical_policy: most-participations
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/protrecon.db", cfg.Store.Path)
	assert.Equal(t, 5*time.Second, cfg.Registry.RetryInterval)
	assert.Equal(t, 3, cfg.Registry.MaxAttempts)
	assert.Equal(t, 10, cfg.Reconcile.BatchSize)
	assert.Equal(t, 0.5, cfg.Reconcile.ConservationThreshold)
	assert.True(t, cfg.Reconcile.AutoFixDeadAccessions)
	assert.Equal(t, "most-participations", cfg.Reconcile.CanonicalPolicy)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched fields keep their defaults.
	assert.True(t, cfg.Reconcile.CreateMissingTranscripts)
	assert.Equal(t, 1024, cfg.Registry.CacheSize)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestParse_SchemaRejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown top-level key", "bogus: 1\n", "bogus"},
		{"unknown nested key", "reconcile:\n  bogus: 1\n", "bogus"},
		{"batch size zero", "reconcile:\n  batch_size: 0\n", "batch_size"},
		{"threshold above one", "reconcile:\n  conservation_threshold: 1.5\n", "conservation_threshold"},
		{"unknown policy", "reconcile:\n  canonical_policy: newest\n", "canonical_policy"},
		{"bad duration", "registry:\n  retry_interval: soon\n", "retry_interval"},
		{"bad level", "log:\n  level: loud\n", "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			var serr *SchemaError
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("reconcile: [unterminated"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protrecon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reconcile:\n  batch_size: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Reconcile.BatchSize)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PROTRECON_STORE_PATH":                         "/tmp/x.db",
		"PROTRECON_RECONCILE_BATCH_SIZE":               "25",
		"PROTRECON_RECONCILE_CONSERVATION_THRESHOLD":   "0.6",
		"PROTRECON_RECONCILE_AUTO_FIX_DEAD_ACCESSIONS": "true",
		"PROTRECON_REGISTRY_RETRY_INTERVAL":            "250ms",
		"PROTRECON_METRICS_ADDR":                       ":9090",
	}
	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
	assert.Equal(t, 25, cfg.Reconcile.BatchSize)
	assert.Equal(t, 0.6, cfg.Reconcile.ConservationThreshold)
	assert.True(t, cfg.Reconcile.AutoFixDeadAccessions)
	assert.Equal(t, 250*time.Millisecond, cfg.Registry.RetryInterval)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadValue(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(func(k string) string {
		if k == "PROTRECON_RECONCILE_BATCH_SIZE" {
			return "many"
		}
		return ""
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROTRECON_RECONCILE_BATCH_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.Reconcile.BatchSize = 0 }, "reconcile.batchsize must be at least 1"},
		{"threshold", func(c *Config) { c.Reconcile.ConservationThreshold = 2 }, "conservationthreshold must be at most 1"},
		{"policy", func(c *Config) { c.Reconcile.CanonicalPolicy = "newest" }, "must be one of"},
		{"store path", func(c *Config) { c.Store.Path = "" }, "store.path is required"},
		{"base url", func(c *Config) { c.Registry.BaseURL = "not a url" }, "registry.baseurl is invalid"},
		{"metrics addr", func(c *Config) { c.Metrics.Addr = "nowhere" }, "metrics.addr is invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReconcileSettings(t *testing.T) {
	cfg := Defaults()
	cfg.Reconcile.BatchSize = 5
	cfg.Reconcile.ResolveConcurrency = 4

	rc := cfg.ReconcileSettings()
	assert.Equal(t, 5, rc.BatchSize)
	assert.Equal(t, 4, rc.ResolveConcurrency)
	assert.Equal(t, 0.35, rc.ConservationThreshold)
	assert.True(t, rc.BlockRepairOnSevere)
	assert.Equal(t, "earliest-created", rc.CanonicalPolicy)
}

func TestUniProt(t *testing.T) {
	cfg := Defaults()
	cfg.Registry.BaseURL = "http://localhost:8080"
	u := cfg.UniProt()
	assert.Equal(t, "http://localhost:8080", u.BaseURL)
	assert.Equal(t, uint32(5), u.BreakerFailures)
	assert.Equal(t, 30*time.Second, u.Timeout)
}
