package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/protrecon/internal/audit"
	"github.com/roach88/protrecon/internal/metrics"
	"github.com/roach88/protrecon/internal/reconcile"
	"github.com/roach88/protrecon/internal/repair"
	"github.com/roach88/protrecon/internal/resolve"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions

	// Registry is a seed file whose entries replace UniProt.
	Registry string

	BatchSize int
	AutoFix   bool
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass",
		Long: `Run one reconciliation pass over every record in the store.

Records are processed in batches. Each batch commits or rolls back as a
unit; a rolled-back batch reports its records as skipped and the pass
continues. Outcomes are logged and appended to the audit trail.

Interrupting the pass (Ctrl-C) lets the current batch finish and stops
before the next one.

Exit codes:
  0 - Pass finished (check failed_batches for rolled-back work)
  1 - Pass aborted on an invariant violation
  2 - Command error (bad config, store not found, etc.)

Examples:
  protrecon reconcile --store ./curated.db
  protrecon reconcile --registry ./entries.yaml --batch-size 10
  protrecon reconcile --metrics-addr localhost:9090 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "seed file whose entries replace UniProt")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "records per batch (overrides config)")
	cmd.Flags().BoolVar(&opts.AutoFix, "auto-fix", false, "remap dead accessions through secondary accessions")

	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	if opts.BatchSize > 0 {
		cfg.Reconcile.BatchSize = opts.BatchSize
	}
	if opts.AutoFix {
		cfg.Reconcile.AutoFixDeadAccessions = true
	}

	logger, closeLog, err := opts.Logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close log file: %v\n", err)
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	collector := metrics.NewCollector()
	source, err := registrySource(cfg, opts.Registry, logger)
	if err != nil {
		return err
	}
	client := registryClient(cfg, source, logger, collector)

	driver := reconcile.New(st, resolve.New(client, resolve.WithLogger(logger)),
		reconcile.WithConfig(cfg.ReconcileSettings()),
		reconcile.WithAuditor(audit.Multi{audit.NewLogSink(logger), audit.NewStoreSink(st)}),
		reconcile.WithRangeRepairer(repair.NewFlagger(st, logger)),
		reconcile.WithLogger(logger),
		reconcile.WithObserver(collector),
	)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(ctx, cfg.Metrics.Addr, collector.Handler(), logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer stop()
	}

	// First signal: finish the current batch and stop. Second: cancel.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after current batch", "signal", sig)
			driver.RequestStop()
		case <-ctx.Done():
			return
		}
		select {
		case sig := <-sigChan:
			logger.Warn("received second signal, cancelling", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, runErr := driver.Run(ctx)
	f := opts.Formatter(cmd)
	if runErr != nil {
		if summary == nil {
			return WrapExitError(ExitFailure, "reconciliation pass failed", runErr)
		}
		if f.Format == "json" {
			_ = f.Error(CodePassAborted, runErr.Error(), summary)
		} else {
			writeSummary(f.Writer, summary)
		}
		return WrapExitError(ExitFailure, "reconciliation pass aborted", runErr).WithReason(CodePassAborted)
	}

	if f.Format == "json" {
		return f.Success(summary)
	}
	writeSummary(f.Writer, summary)
	return nil
}

// writeSummary prints a pass summary as text.
func writeSummary(w io.Writer, s *reconcile.PassSummary) {
	fmt.Fprintf(w, "Pass %s: %d records in %d batches", s.PassID, s.Records, s.Batches)
	if s.FailedBatches > 0 {
		fmt.Fprintf(w, " (%d rolled back)", s.FailedBatches)
	}
	if s.Stopped {
		fmt.Fprint(w, " [stopped]")
	}
	fmt.Fprintln(w)

	kinds := make([]string, 0, len(s.Outcomes))
	for k := range s.Outcomes {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-24s %d\n", k, s.Outcomes[reconcile.OutcomeKind(k)])
	}

	fmt.Fprintf(w, "Delivered %d outcomes, %d range repairs, %d dispatch failures\n",
		s.Delivered, s.Repairs, s.DispatchFailures)
}

// serveMetrics serves handler on addr until ctx ends or stop is called.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}, nil
}
