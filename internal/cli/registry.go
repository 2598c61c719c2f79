package cli

import (
	"fmt"
	"log/slog"

	"github.com/roach88/protrecon/internal/config"
	"github.com/roach88/protrecon/internal/fixture"
	"github.com/roach88/protrecon/internal/registry"
	"github.com/roach88/protrecon/internal/store"
)

// registrySource returns the source commands read entries from. A seed file
// replaces UniProt with the file's static entries, which keeps passes
// reproducible and offline.
func registrySource(cfg *config.Config, seedPath string, logger *slog.Logger) (registry.Source, error) {
	if seedPath != "" {
		doc, err := fixture.Load(seedPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load registry entries", err).WithReason(CodeRegistry)
		}
		return doc.Source(), nil
	}

	uc := cfg.UniProt()
	uc.Logger = logger
	var src registry.Source = registry.NewUniProtSource(uc)
	if cfg.Registry.CacheSize > 0 {
		cached, err := registry.NewCachedSource(src, cfg.Registry.CacheSize)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create registry cache", err).WithReason(CodeRegistry)
		}
		src = cached
	}
	return src, nil
}

// registryClient wraps source with the configured retry loop.
func registryClient(cfg *config.Config, source registry.Source, logger *slog.Logger, observer registry.Observer) *registry.Client {
	opts := []registry.ClientOption{
		registry.WithMaxAttempts(cfg.Registry.MaxAttempts),
		registry.WithRetryInterval(cfg.Registry.RetryInterval),
		registry.WithLogger(logger),
	}
	if observer != nil {
		opts = append(opts, registry.WithObserver(observer))
	}
	return registry.NewClient(source, opts...)
}

// openStore opens the configured store.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open store %s", cfg.Store.Path), err).WithReason(CodeStore)
	}
	return st, nil
}
