package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/rodchain/internal/config"
	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

func doctorCmd() *cobra.Command {
	var launch bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check Chrome and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context(), cmd.OutOrStdout(), launch)
		},
	}
	cmd.Flags().BoolVar(&launch, "launch", false, "also start Chrome and open a session")
	return cmd
}

func runDoctor(ctx context.Context, w io.Writer, launch bool) {
	fmt.Fprintln(w, "rodchain doctor")
	fmt.Fprintf(w, "  Version:  %s\n", Version)
	fmt.Fprintf(w, "  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Go:       %s\n", runtime.Version())
	fmt.Fprintln(w)

	cfgPath := resolveConfigPath()
	fmt.Fprintf(w, "  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Fprintln(w, " (NOT FOUND, using defaults)")
	} else {
		fmt.Fprintln(w, " (OK)")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(w, "  Config load error: %s\n", err)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Browser:")
	switch {
	case cfg.Browser.RemoteURL != "":
		fmt.Fprintf(w, "    %-12s %s\n", "remote:", maskSecret(cfg.Browser.RemoteURL))
	case cfg.Browser.Bin != "":
		checkPath(w, "chrome:", cfg.Browser.Bin)
	default:
		if path, ok := launcher.LookPath(); ok {
			fmt.Fprintf(w, "    %-12s %s\n", "chrome:", path)
		} else {
			fmt.Fprintf(w, "    %-12s NOT FOUND (rod downloads one on first run)\n", "chrome:")
		}
	}
	fmt.Fprintf(w, "    %-12s %v\n", "headless:", cfg.Browser.Headless)
	fmt.Fprintf(w, "    %-12s %v\n", "stealth:", cfg.Browser.Stealth)

	fmt.Fprintln(w)
	wc := cfg.BrowserWait()
	fmt.Fprintln(w, "  Wait:")
	fmt.Fprintf(w, "    %-12s %s\n", "timeout:", wc.Timeout)
	fmt.Fprintf(w, "    %-12s %s\n", "poll:", wc.PollInterval)

	if launch {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Session:  ")
		if err := probeSession(ctx, cfg); err != nil {
			fmt.Fprintf(w, "FAILED (%s)\n", err)
		} else {
			fmt.Fprintln(w, "OK")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Doctor check complete.")
}

func checkPath(w io.Writer, label, path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(w, "    %-12s %s (NOT FOUND)\n", label, path)
		return
	}
	fmt.Fprintf(w, "    %-12s %s\n", label, path)
}

// probeSession opens and closes one session end to end.
func probeSession(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	drv := newDriver(cfg, newLogger(io.Discard, cfg.Log))
	defer drv.Stop(context.Background())

	c := browser.NewClient(drv, browser.WithWaitConfig(cfg.BrowserWait()))
	defer c.Close(context.Background())

	_, err := c.Open().Wait(browser.SessionReady).Navigate("about:blank").Close().Await(ctx)
	return err
}
