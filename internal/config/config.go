// Package config loads protrecon settings from YAML files and the
// environment.
//
// A file is checked twice. The raw document is unified with an embedded CUE
// schema so unknown keys and out-of-range values are reported with their
// path before anything is decoded. The decoded struct, after environment
// overrides and command-line flags, is checked again with validator tags.
package config

import (
	"time"

	"github.com/roach88/protrecon/internal/conservation"
	"github.com/roach88/protrecon/internal/merge"
	"github.com/roach88/protrecon/internal/reconcile"
	"github.com/roach88/protrecon/internal/registry"
)

// Config is the full runtime configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Registry  RegistryConfig  `yaml:"registry"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// RegistryConfig controls the UniProt source and the retry loop around it.
type RegistryConfig struct {
	BaseURL         string        `yaml:"base_url" validate:"required,url"`
	MaxAttempts     int           `yaml:"max_attempts" validate:"min=1"`
	RetryInterval   time.Duration `yaml:"retry_interval" validate:"min=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	CacheSize       int           `yaml:"cache_size" validate:"min=0"`
	BreakerFailures int           `yaml:"breaker_failures" validate:"min=0"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" validate:"min=0"`
}

// ReconcileConfig mirrors reconcile.Config.
type ReconcileConfig struct {
	BatchSize                int     `yaml:"batch_size" validate:"min=1"`
	ConservationThreshold    float64 `yaml:"conservation_threshold" validate:"min=0,max=1"`
	AutoFixDeadAccessions    bool    `yaml:"auto_fix_dead_accessions"`
	CreateMissingTranscripts bool    `yaml:"create_missing_transcripts"`
	BlockRepairOnSevere      bool    `yaml:"block_repair_on_severe"`
	ResolveConcurrency       int     `yaml:"resolve_concurrency" validate:"min=1"`
	CanonicalPolicy          string  `yaml:"canonical_policy" validate:"oneof=earliest-created most-participations"`
}

// LogConfig selects the log level and an optional JSON log file.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Defaults returns the production configuration.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{Path: "protrecon.db"},
		Registry: RegistryConfig{
			BaseURL:         registry.DefaultUniProtURL,
			MaxAttempts:     registry.DefaultMaxAttempts,
			RetryInterval:   registry.DefaultRetryInterval,
			Timeout:         30 * time.Second,
			CacheSize:       1024,
			BreakerFailures: 5,
			BreakerTimeout:  60 * time.Second,
		},
		Reconcile: ReconcileConfig{
			BatchSize:                reconcile.DefaultBatchSize,
			ConservationThreshold:    conservation.DefaultThreshold,
			AutoFixDeadAccessions:    false,
			CreateMissingTranscripts: true,
			BlockRepairOnSevere:      true,
			ResolveConcurrency:       1,
			CanonicalPolicy:          merge.PolicyEarliestCreated,
		},
		Log: LogConfig{Level: "info"},
	}
}

// ReconcileSettings converts the reconcile section for the driver.
func (c *Config) ReconcileSettings() reconcile.Config {
	r := c.Reconcile
	return reconcile.Config{
		BatchSize:                r.BatchSize,
		ConservationThreshold:    r.ConservationThreshold,
		AutoFixDeadAccessions:    r.AutoFixDeadAccessions,
		CreateMissingTranscripts: r.CreateMissingTranscripts,
		BlockRepairOnSevere:      r.BlockRepairOnSevere,
		ResolveConcurrency:       r.ResolveConcurrency,
		CanonicalPolicy:          r.CanonicalPolicy,
	}
}

// UniProt converts the registry section for registry.NewUniProtSource.
func (c *Config) UniProt() registry.UniProtConfig {
	r := c.Registry
	return registry.UniProtConfig{
		BaseURL:         r.BaseURL,
		Timeout:         r.Timeout,
		BreakerFailures: uint32(r.BreakerFailures),
		BreakerTimeout:  r.BreakerTimeout,
	}
}
