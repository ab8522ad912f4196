package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/couchcryptid/sipsa-price-etl/internal/adapter/jsonfile"
	kafkaadapter "github.com/couchcryptid/sipsa-price-etl/internal/adapter/kafka"
	"github.com/couchcryptid/sipsa-price-etl/internal/adapter/sipsa"
	"github.com/couchcryptid/sipsa-price-etl/internal/config"
	"github.com/couchcryptid/sipsa-price-etl/internal/observability"
	"github.com/couchcryptid/sipsa-price-etl/internal/pipeline"
	"github.com/couchcryptid/sipsa-price-etl/internal/report"
)

const metricsExportTimeout = 10 * time.Second

// newRootCmd builds the CLI. The report goes to out; logs go to stderr.
func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sipsa",
		Short:         "Fetch SIPSA agricultural prices and summarize them",
		Long:          "Queries the DANE SIPSA web service, filters the price records by city or by the last week, prints a summary and saves the records as JSON.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("out-dir", "", "directory for the JSON output (overrides OUTPUT_DIR)")

	city := &cobra.Command{
		Use:   "city",
		Short: "Average prices for one city (promediosSipsaCiudad)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, out, runCity)
		},
	}
	city.Flags().String("city", "", "city to keep (overrides TARGET_CITY)")
	city.Flags().Int("top", 0, "size of the cheapest and most expensive rankings (overrides TOP_N)")

	weekly := &cobra.Command{
		Use:   "weekly",
		Short: "Prices by market over the last week (promediosSipsaSemanaMadr)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, out, runWeekly)
		},
	}
	weekly.Flags().Int("window-days", 0, "trailing window length in days (overrides WINDOW_DAYS)")

	operations := &cobra.Command{
		Use:   "operations",
		Short: "List the operations the WSDL declares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, out, listOperations)
		},
	}

	root.AddCommand(city, weekly, operations)
	return root
}

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	client  *sipsa.Client
	out     io.Writer
}

type command func(ctx context.Context, a *app) error

// run loads configuration, executes fn and exports the run metrics. Metrics
// are exported on failure too; an export error is only logged.
func run(cmd *cobra.Command, out io.Writer, fn command) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if err := applyFlags(cfg, cmd.Flags()); err != nil {
		slog.Error("invalid flag", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg).With("command", cmd.Name())
	metrics := observability.NewMetrics()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		client:  sipsa.NewClient(cfg, logger, metrics),
		out:     out,
	}

	ctx := cmd.Context()
	runErr := fn(ctx, a)
	if runErr != nil {
		logger.Error("run failed", "error", runErr)
	}

	exporter := observability.Exporter{PushgatewayURL: cfg.PushgatewayURL, Textfile: cfg.MetricsTextfile}
	if exporter.Enabled() {
		exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsExportTimeout)
		if err := exporter.Export(exportCtx, metrics.Registry, cmd.Name()); err != nil {
			logger.Warn("metrics export failed", "error", err)
		}
		cancel()
	}
	return runErr
}

func runCity(ctx context.Context, a *app) error {
	p, closeLoaders := a.pipeline()
	defer closeLoaders()

	r, err := p.RunCity(ctx)
	if err != nil {
		return err
	}
	return report.WriteCity(a.out, r)
}

func runWeekly(ctx context.Context, a *app) error {
	p, closeLoaders := a.pipeline()
	defer closeLoaders()

	r, err := p.RunWeekly(ctx)
	if err != nil {
		return err
	}
	return report.WriteWeekly(a.out, r)
}

func listOperations(ctx context.Context, a *app) error {
	ops, err := a.client.Operations(ctx)
	if err != nil {
		return err
	}
	return report.WriteOperations(a.out, ops)
}

// pipeline wires the JSON file loader and, when brokers are configured, the
// Kafka sink. The returned func closes the sink.
func (a *app) pipeline() (*pipeline.Pipeline, func()) {
	loaders := []pipeline.Loader{jsonfile.NewWriter(a.cfg.OutputDir, a.logger)}
	closeLoaders := func() {}
	if len(a.cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(a.cfg, a.logger)
		loaders = append(loaders, w)
		closeLoaders = func() {
			if err := w.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}
		a.logger.Info("kafka sink enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaTopic)
	}
	p := pipeline.New(a.client, loaders, clockwork.NewRealClock(), a.logger, a.metrics, pipeline.OptionsFromConfig(a.cfg))
	return p, closeLoaders
}

// applyFlags overrides configuration with the flags the user set explicitly.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	if flags.Changed("out-dir") {
		dir, _ := flags.GetString("out-dir")
		if dir == "" {
			return errors.New("--out-dir must not be empty")
		}
		cfg.OutputDir = dir
	}
	if flags.Changed("city") {
		city, _ := flags.GetString("city")
		if city == "" {
			return errors.New("--city must not be empty")
		}
		cfg.TargetCity = city
	}
	if flags.Changed("top") {
		top, _ := flags.GetInt("top")
		if top < 1 || top > 1000 {
			return fmt.Errorf("--top must be in [1, 1000], got %d", top)
		}
		cfg.TopN = top
	}
	if flags.Changed("window-days") {
		days, _ := flags.GetInt("window-days")
		if days < 1 || days > 366 {
			return fmt.Errorf("--window-days must be in [1, 366], got %d", days)
		}
		cfg.Window.Window = time.Duration(days) * 24 * time.Hour
	}
	return nil
}
