// Command harvesterd runs the ranking harvester, either as a one-shot
// run or on a cron schedule with a Prometheus metrics endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rankwatch/roblox-harvester/pkg/harvester"
	"github.com/rankwatch/roblox-harvester/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "harvesterd",
	Short: "Harvest ranked universe stats from the upstream API",
	Long: `harvesterd walks the configured ranking sort, fetches per-universe
stats with bounded concurrency and global request pacing, and writes a
daily run snapshot for the downstream index engine.

Without --schedule it performs one run and exits. With --schedule it
runs on the given cron spec and serves Prometheus metrics.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("sort", "top-earning", "ranking sort to harvest")
	flags.Int("top-n", 1500, "number of ranked universes to harvest")
	flags.Int("concurrency", 3, "worker pool size (clamped to 1-10)")
	flags.Duration("min-interval", 750*time.Millisecond, "global minimum interval between requests (0 disables pacing)")
	flags.Int("max-retries", 3, "retries per request (clamped to 0-10)")
	flags.Duration("base-delay", time.Second, "first-retry backoff")
	flags.Duration("max-delay", 30*time.Second, "backoff cap")
	flags.Int("page-size", 100, "ranking page size (clamped to 10-100)")
	flags.Int("max-pages", 30, "page cap per walk (clamped to 1-200)")
	flags.Int("cache-max-age-days", 7, "freshness window for cached stats")
	flags.String("cache-path", "cache/universe_stats.json", "stats cache document")
	flags.String("runs-dir", "runs", "run snapshot directory")
	flags.String("dump-dir", "dumps", "diagnostic dump directory")
	flags.String("schedule", "", "cron spec for periodic harvesting (empty = run once)")
	flags.String("metrics-addr", ":9290", "metrics listen address in scheduled mode")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human-readable log output")

	viper.SetEnvPrefix("HARVESTER")
	// Dashed flag keys map to underscored env vars (HARVESTER_TOP_N).
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(viper.GetString("log-level")),
		Pretty: viper.GetBool("log-pretty"),
		Output: os.Stderr,
	})

	config := harvester.Config{
		SortID:          viper.GetString("sort"),
		TopN:            viper.GetInt("top-n"),
		Concurrency:     viper.GetInt("concurrency"),
		MinInterval:     viper.GetDuration("min-interval"),
		MaxRetries:      viper.GetInt("max-retries"),
		BaseDelay:       viper.GetDuration("base-delay"),
		MaxDelay:        viper.GetDuration("max-delay"),
		PageSize:        viper.GetInt("page-size"),
		MaxPages:        viper.GetInt("max-pages"),
		CacheMaxAgeDays: viper.GetInt("cache-max-age-days"),
		CachePath:       viper.GetString("cache-path"),
		RunsDir:         viper.GetString("runs-dir"),
		DumpDir:         viper.GetString("dump-dir"),
	}

	schedule := viper.GetString("schedule")
	if schedule == "" {
		h := harvester.New(config, logging.NewLogger("harvester"))
		report, err := h.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("harvest failed: %w", err)
		}
		logger.Info().
			Str("snapshot", report.SnapshotPath).
			Int("fetched", report.Fetched).
			Int("from_cache", report.FromCache).
			Int("failed", report.Failed).
			Msg("Harvest complete")
		return nil
	}

	return runScheduled(logger, config, schedule, viper.GetString("metrics-addr"))
}

// runScheduled runs harvests on a cron schedule until interrupted,
// serving Prometheus metrics on the side.
func runScheduled(logger zerolog.Logger, config harvester.Config, schedule, metricsAddr string) error {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		h := harvester.New(config, logging.NewLogger("harvester"))
		report, runErr := h.Run(context.Background())
		if runErr != nil {
			logger.Error().Err(runErr).Msg("Scheduled harvest failed")
			return
		}
		logger.Info().
			Str("snapshot", report.SnapshotPath).
			Int("fetched", report.Fetched).
			Int("failed", report.Failed).
			Msg("Scheduled harvest complete")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	server := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error().Err(serveErr).Msg("Metrics server failed")
		}
	}()

	scheduler.Start()
	logger.Info().
		Str("schedule", schedule).
		Str("metrics_addr", metricsAddr).
		Msg("Scheduler started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
