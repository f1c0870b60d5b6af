package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinelgov/auditchain/pkg/bootstrap"
	"github.com/sentinelgov/auditchain/pkg/config"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/metrics"
	"github.com/sentinelgov/auditchain/pkg/pulse"
	"github.com/sentinelgov/auditchain/pkg/remotestore"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "auditd",
	Short: "Audit-chain daemon: witness cron, uptime pulse and metrics",
	Long: `auditd is the long-running half of the audit-chain subsystem. It
drives the daily witness anchoring and the uptime pulse, and exposes
/metrics, /health and /ready plus the cron trigger endpoints the
scheduler calls.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"auditd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Optional YAML configuration file")
	rootCmd.Flags().String("listen", ":9090", "Listen address for metrics, health and cron endpoints")
	rootCmd.Flags().Duration("pulse-period", 5*time.Minute, "Uptime pulse period (max 10m)")
	rootCmd.Flags().Duration("anchor-interval", 24*time.Hour, "Interval between witness anchor runs")
	rootCmd.Flags().Duration("anchor-budget", 10*time.Minute, "Wall-clock budget for one anchor run")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:   logLevel,
		Console: !logJSON,
	})
}

func run(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	listen, _ := cmd.Flags().GetString("listen")
	pulsePeriod, _ := cmd.Flags().GetDuration("pulse-period")
	anchorInterval, _ := cmd.Flags().GetDuration("anchor-interval")
	anchorBudget, _ := cmd.Flags().GetDuration("anchor-budget")

	if pulsePeriod > 10*time.Minute {
		return fmt.Errorf("pulse period must not exceed 10 minutes")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	stack, err := bootstrap.New(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()
	stack.Witness.Budget = anchorBudget

	collector := metrics.NewCollector(stack.Chain)
	collector.Start()
	defer collector.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := stack.NewPulseDriver(pulsePeriod)
	go driver.Run(ctx)

	anchors := &anchorState{}
	go anchorLoop(ctx, stack, anchorInterval, anchors)

	registerHealthChecks(stack, driver, anchors, pulsePeriod)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())
	registerCronEndpoints(mux, stack)

	auditdLog := log.WithComponent("auditd")
	server := &http.Server{Addr: listen, Handler: mux}
	go func() {
		auditdLog.Info().Str("listen", listen).Msg("daemon listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			auditdLog.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		auditdLog.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// anchorState remembers the outcome of the most recent witness anchor
// run so the health probe can report on a loop that only fires every
// --anchor-interval.
type anchorState struct {
	mu      sync.Mutex
	lastErr error
	lastRun time.Time
}

func (a *anchorState) record(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
	a.lastRun = time.Now()
}

func (a *anchorState) probe() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastRun.IsZero() {
		// First interval has not elapsed yet.
		return nil
	}
	return a.lastErr
}

// registerHealthChecks wires the health and readiness probes to the
// components this daemon actually runs: the silo root the chain store
// owns, the remote store behind the witness, the pulse loop's
// recency, and the last anchor run's outcome.
func registerHealthChecks(stack *bootstrap.Stack, driver *pulse.Driver, anchors *anchorState, pulsePeriod time.Duration) {
	metrics.SetVersion(Version)

	metrics.RegisterCheck("chainstore", true, func() error {
		_, err := stack.Chain.ListTenants()
		return err
	})

	metrics.RegisterCheck("remote_store", false, func() error {
		if _, err := stack.Remote.GetGovTenant("_health_probe"); err != nil && !errors.Is(err, remotestore.ErrNotFound) {
			return err
		}
		return nil
	})

	if pulsePeriod <= 0 {
		pulsePeriod = pulse.DefaultPeriod
	}
	metrics.RegisterCheck("pulse", true, func() error {
		last := driver.LastRun()
		if last.IsZero() {
			// The first round has not fired yet.
			return nil
		}
		if elapsed := time.Since(last); elapsed > 3*pulsePeriod {
			return fmt.Errorf("last pulse round %s ago", elapsed.Round(time.Second))
		}
		return nil
	})

	metrics.RegisterCheck("witness", true, anchors.probe)
}

// anchorLoop runs the witness anchoring on its interval. The cron
// endpoint can also trigger a run out of band.
func anchorLoop(ctx context.Context, stack *bootstrap.Stack, interval time.Duration, anchors *anchorState) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			timer := metrics.NewTimer()
			_, err := stack.Witness.AnchorAllTenants()
			anchors.record(err)
			if err != nil {
				witnessLog := log.WithComponent("witness")
				witnessLog.Error().Err(err).Msg("scheduled anchor run failed")
				continue
			}
			timer.ObserveDuration(metrics.WitnessRunDuration)
		case <-ctx.Done():
			return
		}
	}
}
