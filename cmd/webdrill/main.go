// Command webdrill runs an end-to-end scenario against a deployed web
// client and reports the result through its exit status. It is the thin
// process boundary around the harness: flag parsing, logger setup, the
// interactive inspection pause, and the exit code live here, not in the
// core.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cboone/webdrill"
	"github.com/cboone/webdrill/internal/chromium"
)

// inspectionPause is how long a failed windowed run stays up so a human
// can poke at the browser before teardown. Headless runs never pause.
const inspectionPause = 5 * time.Minute

type config struct {
	headless   bool
	slowTyping bool
	devtools   bool
	throttle   float64
	noSandbox  bool
	logDir     string
	regSecret  string
	appURL     string
	serviceURL string
}

func main() {
	var cfg config

	cmd := &cobra.Command{
		Use:          "webdrill",
		Short:        "End-to-end harness for the chat web client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&cfg.headless, "headless", true, "run the browser without a display")
	flags.BoolVar(&cfg.slowTyping, "slow-typing", false, "insert a delay between keystrokes")
	flags.BoolVar(&cfg.devtools, "devtools", false, "open devtools in each browser")
	flags.Float64Var(&cfg.throttle, "throttle", 1.0, "CPU slowdown multiplier (1.0 = off)")
	flags.BoolVar(&cfg.noSandbox, "no-sandbox", false, "disable the Chromium sandbox")
	flags.StringVar(&cfg.logDir, "log-dir", "", "directory for failure artifacts and performance data")
	flags.StringVar(&cfg.regSecret, "registration-secret", "", "shared registration secret of the service under test")
	flags.StringVar(&cfg.appURL, "app-url", "http://localhost:8080", "base URL of the web client")
	flags.StringVar(&cfg.serviceURL, "service-url", "http://localhost:8008", "base URL of the backing service")
	_ = cmd.MarkFlagRequired("registration-secret")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	launch := webdrill.LaunchOptions{
		Headless:  cfg.headless,
		Devtools:  cfg.devtools,
		NoSandbox: cfg.noSandbox,
	}
	if cfg.slowTyping {
		launch.TypeDelay = 100 * time.Millisecond
	}

	if cfg.logDir != "" {
		if err := os.MkdirAll(cfg.logDir, 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
	}

	ropts := []webdrill.RunnerOption{
		webdrill.WithArtifactDir(cfg.logDir),
		webdrill.WithRunnerLogger(logger),
		webdrill.WithSessionOptions(
			webdrill.WithLaunchOptions(launch),
			webdrill.WithCPUThrottle(cfg.throttle),
		),
	}
	if !cfg.headless {
		// Windowed runs pause on failure while the browsers are still
		// open, so a human can inspect them before teardown.
		ropts = append(ropts, webdrill.WithInspectionHook(func(ctx context.Context, err error) {
			logger.Sugar().Infof("scenario failed; pausing %v for inspection", inspectionPause)
			select {
			case <-time.After(inspectionPause):
			case <-ctx.Done():
			}
		}))
	}

	runner := webdrill.NewRunner(chromium.NewLauncher(), ropts...)
	outcome := runner.Run(ctx, smokeScenario(cfg))

	if outcome.Failed() {
		return outcome.Err
	}
	logger.Sugar().Infof("scenario passed (%d performance entries)", len(outcome.Entries))
	return nil
}
