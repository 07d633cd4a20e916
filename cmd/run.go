package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/nextlevelbuilder/rodchain/internal/config"
	"github.com/nextlevelbuilder/rodchain/internal/rodriver"
	"github.com/nextlevelbuilder/rodchain/internal/scenario"
	"github.com/nextlevelbuilder/rodchain/internal/tracing"
	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// errScenarioFailed marks a run where at least one scenario failed. The
// reports already say why, so Execute only needs the exit code.
var errScenarioFailed = errors.New("one or more scenarios failed")

type runFlags struct {
	headless bool
	remote   string
	timeout  time.Duration
	watch    bool
	stats    bool
}

func runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run one or more browser scenarios",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.headless, "headless", true, "run Chrome without a window")
	cmd.Flags().StringVar(&f.remote, "remote", "", "DevTools URL of a running Chrome (skips launching)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "default wait timeout (overrides config)")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "reload wait settings when the config file changes")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "print per-operation timings")
	return cmd
}

func runScenarios(cmd *cobra.Command, paths []string, f runFlags) error {
	// Parse everything up front so a typo does not cost a browser launch.
	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := scenario.Load(p)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, sc)
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if f.remote != "" {
		cfg.Browser.RemoteURL = f.remote
	}
	if f.timeout > 0 {
		cfg.Wait.TimeoutMs = int(f.timeout / time.Millisecond)
	}

	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := tracing.NewCollector(0)
	exporter, err := initOTelExporter(ctx, cfg)
	if err != nil {
		logger.Warn("telemetry: exporter disabled", "error", err)
	}
	tp, err := tracing.NewProvider(ctx, cfg.Telemetry.ServiceName, Version, collector, exporter)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("telemetry: shutdown", "error", err)
		}
	}()

	drv := newDriver(cfg, logger)
	defer func() {
		if err := drv.Stop(context.Background()); err != nil {
			logger.Warn("browser: stop", "error", err)
		}
	}()

	client := browser.NewClient(drv,
		browser.WithLogger(logger),
		browser.WithWaitConfig(cfg.BrowserWait()),
		browser.WithTracer(tp.Tracer("rodchain")),
	)
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(cctx); err != nil {
			logger.Warn("client: close", "error", err)
		}
	}()

	if f.watch {
		w, err := config.NewWatcher(cfgPath, logger)
		if err != nil {
			return err
		}
		w.OnChange(func(next *config.Config) {
			wc := next.BrowserWait()
			if f.timeout > 0 {
				wc.Timeout = f.timeout
			}
			client.SetWaitConfig(wc)
			logger.Info("wait config updated", "timeout", wc.Timeout, "poll", wc.PollInterval)
		})
		if err := w.Start(cfg); err != nil {
			return err
		}
		defer w.Stop()
	}

	runner := scenario.NewRunner(client, logger)
	out := cmd.OutOrStdout()
	failed := false
	for i, sc := range scenarios {
		collector.Reset()
		rep, err := runner.Run(ctx, sc)
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
		var stats []tracing.OpStats
		if f.stats {
			stats = collector.Summary()
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		renderReport(out, rep, stats)
		if !rep.Passed() {
			failed = true
		}
	}
	if failed {
		return errScenarioFailed
	}
	return nil
}

// newDriver builds the rod driver from the browser config section.
func newDriver(cfg *config.Config, logger *slog.Logger) *rodriver.Driver {
	return rodriver.New(
		rodriver.WithHeadless(cfg.Browser.Headless),
		rodriver.WithRemoteURL(cfg.Browser.RemoteURL),
		rodriver.WithBin(cfg.Browser.Bin),
		rodriver.WithFlags(cfg.Browser.Flags),
		rodriver.WithStealth(cfg.Browser.Stealth),
		rodriver.WithLogger(logger),
	)
}
