package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sipsa-price-etl/internal/config"
	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
	"github.com/couchcryptid/sipsa-price-etl/internal/observability"
)

// Upstream operations, one per run mode.
const (
	CityOperation   = "promediosSipsaCiudad"
	WeeklyOperation = "promediosSipsaSemanaMadr"
)

// WeeklyPrefix starts the output file name of a weekly run.
const WeeklyPrefix = "sipsa_plaza_precio_semana_"

const fileTimeLayout = "20060102_1504"

// Fetcher returns the raw records of one upstream operation.
type Fetcher interface {
	Fetch(ctx context.Context, operation string) ([]domain.RawRecord, error)
}

// Loader writes a batch to a destination and returns where it went.
type Loader interface {
	Load(ctx context.Context, b domain.Batch) (string, error)
}

// Options are the filter and ranking settings of a run.
type Options struct {
	TargetCity string
	TopN       int
	Window     domain.WindowPolicy
	Fields     domain.Fields
}

// OptionsFromConfig copies the run settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TargetCity: cfg.TargetCity,
		TopN:       cfg.TopN,
		Window:     cfg.Window,
		Fields:     cfg.Fields,
	}
}

// Pipeline runs one fetch-transform-load pass per call. The first loader is
// the primary output; its location is reported back to the caller.
type Pipeline struct {
	fetcher Fetcher
	loaders []Loader
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
}

// New creates a Pipeline. At least one loader is required.
func New(f Fetcher, loaders []Loader, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		fetcher: f,
		loaders: loaders,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// RunCity fetches the city averages, keeps the records of the target city
// and ranks them by price. Nothing is written when the fetch fails.
func (p *Pipeline) RunCity(ctx context.Context) (*domain.CityReport, error) {
	start := p.clock.Now()
	raw, err := p.fetch(ctx, CityOperation)
	if err != nil {
		return nil, err
	}

	matched := domain.FilterByCity(raw, p.opts.Fields, p.opts.TargetCity)
	p.metrics.RecordsSelected.WithLabelValues(domain.KindCity).Add(float64(len(matched)))
	p.logger.Info("city filter applied",
		"city", p.opts.TargetCity,
		"fetched", len(raw),
		"matched", len(matched),
	)

	records := normalizeCity(matched, p.opts.Fields)
	sorted := domain.SortByPrice(records, domain.CityPrice)
	logUnpriced(p.logger, records, domain.CityPrice)

	report := &domain.CityReport{
		Operation:     CityOperation,
		City:          p.opts.TargetCity,
		Fetched:       len(raw),
		Records:       records,
		Cheapest:      domain.Cheapest(sorted, p.opts.TopN),
		MostExpensive: domain.MostExpensive(sorted, p.opts.TopN),
		MostRecent:    domain.MostRecent(matched, p.opts.Fields.CapturedAt),
	}

	name := "sipsa_" + domain.Slug(p.opts.TargetCity) + "_" + start.Format(fileTimeLayout)
	path, err := p.load(ctx, domain.Batch{
		Name:        name,
		Operation:   CityOperation,
		GeneratedAt: start,
		Records:     toRecords(records),
	})
	if err != nil {
		return nil, err
	}
	report.OutputPath = path
	p.finish(start)
	return report, nil
}

// RunWeekly fetches the weekly market averages, keeps the records inside the
// trailing window and drops duplicate (product, place, date) rows.
func (p *Pipeline) RunWeekly(ctx context.Context) (*domain.WeeklyReport, error) {
	start := p.clock.Now()
	raw, err := p.fetch(ctx, WeeklyOperation)
	if err != nil {
		return nil, err
	}

	inWindow, tier := domain.SelectWindow(raw, domain.WeekDateOf(p.opts.Fields), start, p.opts.Window)
	p.metrics.WindowTier.WithLabelValues(string(tier)).Inc()
	p.metrics.RecordsSelected.WithLabelValues(domain.KindWeekly).Add(float64(len(inWindow)))
	if tier == domain.TierSynthetic || tier == domain.TierPassthrough {
		p.logger.Warn("no records in the window ending now, using fallback",
			"tier", tier,
			"window", p.opts.Window.Window,
			"selected", len(inWindow),
		)
	}

	normalized := normalizeWeekly(inWindow, p.opts.Fields)
	records := domain.DedupWeekly(normalized)
	if dropped := len(normalized) - len(records); dropped > 0 {
		p.metrics.DuplicatesDrop.Add(float64(dropped))
		p.logger.Debug("duplicate records dropped", "count", dropped)
	}
	p.logger.Info("window applied",
		"fetched", len(raw),
		"in_window", len(inWindow),
		"unique", len(records),
		"tier", tier,
	)

	report := &domain.WeeklyReport{
		Operation: WeeklyOperation,
		Fetched:   len(raw),
		InWindow:  len(inWindow),
		Tier:      tier,
		Records:   records,
		Groups:    domain.GroupByPlace(records),
	}

	path, err := p.load(ctx, domain.Batch{
		Name:        WeeklyPrefix + start.Format(fileTimeLayout),
		Operation:   WeeklyOperation,
		GeneratedAt: start,
		Records:     toRecords(records),
	})
	if err != nil {
		return nil, err
	}
	report.OutputPath = path
	p.finish(start)
	return report, nil
}

func (p *Pipeline) fetch(ctx context.Context, operation string) ([]domain.RawRecord, error) {
	p.logger.Info("fetching", "operation", operation)
	start := p.clock.Now()
	raw, err := p.fetcher.Fetch(ctx, operation)
	p.metrics.FetchDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", operation, err)
	}
	p.metrics.RecordsFetched.Add(float64(len(raw)))
	p.logger.Info("fetched", "operation", operation, "records", len(raw))
	return raw, nil
}

// load hands the batch to every loader in order and stops at the first
// failure. It returns the primary loader's location.
func (p *Pipeline) load(ctx context.Context, b domain.Batch) (string, error) {
	if len(p.loaders) == 0 {
		return "", errors.New("pipeline has no loaders")
	}
	var primary string
	for i, l := range p.loaders {
		location, err := l.Load(ctx, b)
		if err != nil {
			return "", fmt.Errorf("load %s: %w", b.Name, err)
		}
		p.metrics.RecordsLoaded.WithLabelValues(sinkName(location)).Add(float64(len(b.Records)))
		if i == 0 {
			primary = location
		}
	}
	return primary, nil
}

func (p *Pipeline) finish(start time.Time) {
	end := p.clock.Now()
	p.metrics.RunDuration.Set(end.Sub(start).Seconds())
	p.metrics.LastSuccessful.Set(float64(end.Unix()))
}

// sinkName labels a loader location for the records_loaded metric.
func sinkName(location string) string {
	if strings.HasPrefix(location, "kafka://") {
		return "kafka"
	}
	return "jsonfile"
}
