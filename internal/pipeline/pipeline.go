package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrRunInProgress is returned by Run while another batch is executing.
var ErrRunInProgress = errors.New("a batch is already running")

// CrashSource extracts one portal dataset for an update window.
type CrashSource interface {
	Extract(ctx context.Context, d domain.Dataset, w domain.Window) (domain.Extract, error)
}

// VehicleFeed downloads the vehicle specification table.
type VehicleFeed interface {
	Vehicles(ctx context.Context) ([]domain.RawRow, error)
}

// WeatherCollector fetches hourly weather for every location. It may return
// partial results together with an error describing the failed locations.
type WeatherCollector func(ctx context.Context, locations []domain.WeatherLocation, w domain.Window) ([]domain.WeatherSeries, error)

// ReferenceStore reads and updates the static reference files.
type ReferenceStore interface {
	BrandAliases() (*domain.BrandAliases, error)
	ModelCatalog() (*domain.ModelCatalog, error)
	SaveModelCatalog(c *domain.ModelCatalog) error
	Zones() ([]domain.Zone, error)
}

// Sink writes the finished tables of a batch.
type Sink interface {
	Load(ctx context.Context, t domain.Tables) ([]domain.TableLoad, error)
}

// UpdateLog records the windows of completed updates.
type UpdateLog interface {
	LastUpdate(ctx context.Context) (domain.UpdateRecord, error)
	RecordUpdate(ctx context.Context, u domain.UpdateRecord) error
}

// Notifier announces finished loads.
type Notifier interface {
	Publish(ctx context.Context, runID string, w domain.Window, loads []domain.TableLoad) error
}

// Deps are the collaborators of a Pipeline. Updates and Notifier are
// optional. A nil Clock uses real time.
type Deps struct {
	Crashes   CrashSource
	Vehicles  VehicleFeed
	Weather   WeatherCollector
	Reference ReferenceStore
	Sink      Sink
	Updates   UpdateLog
	Notifier  Notifier
	Clock     clockwork.Clock
}

// Options select the batch mode.
type Options struct {
	// Initialization loads the location-area dimension, queries weather for
	// the unknown area and adds a placeholder vehicle for every known brand.
	Initialization bool
	// RecordUpdates appends a Metadata row after a successful load.
	RecordUpdates bool
}

// Request describes one batch. A nil Window derives the next regular window
// from the update log. An empty Message picks the default for the window kind.
type Request struct {
	Window  *domain.Window
	Message string
}

// Result summarizes a finished batch.
type Result struct {
	RunID     string
	Window    domain.Window
	Message   string
	Loads     []domain.TableLoad
	Integrity domain.IntegrityReport
}

// Pipeline runs extract-transform-load batches for one update window at a time.
type Pipeline struct {
	deps     Deps
	opts     Options
	holidays domain.HolidayCalendar
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	running  sync.Mutex
	inflight sync.WaitGroup
	ready    atomic.Bool
}

// New creates a Pipeline with the given collaborators and observability.
func New(deps Deps, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		deps:     deps,
		opts:     opts,
		holidays: domain.NewUSHolidays(),
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// CheckReadiness returns nil once a batch has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no batch has completed yet")
	}
	return nil
}

// Run executes one batch. Concurrent calls fail fast with ErrRunInProgress.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if !p.running.TryLock() {
		return Result{}, ErrRunInProgress
	}
	defer p.running.Unlock()
	return p.execute(ctx, req)
}

// Trigger starts a batch in the background and reports whether it was
// accepted. The outcome is logged and counted like any other run. Cancelling
// ctx aborts the batch; Wait blocks until it has returned.
func (p *Pipeline) Trigger(ctx context.Context, w *domain.Window, message string) bool {
	if !p.running.TryLock() {
		return false
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer p.running.Unlock()
		_, _ = p.execute(ctx, Request{Window: w, Message: message})
	}()
	return true
}

// Wait blocks until every batch started by Trigger has returned, or until ctx
// is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for triggered batch: %w", ctx.Err())
	}
}

func (p *Pipeline) execute(ctx context.Context, req Request) (Result, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := time.Now()

	res, err := p.run(ctx, runID, req, logger)
	if err != nil {
		p.metrics.BatchRuns.WithLabelValues("failure").Inc()
		logger.Error("batch failed", "error", err, "duration", time.Since(start))
		return res, err
	}

	p.metrics.BatchRuns.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.SetToCurrentTime()
	p.ready.Store(true)
	logger.Info("batch finished", "start", res.Window.Start, "end", res.Window.End, "duration", time.Since(start))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, req Request, logger *slog.Logger) (Result, error) {
	w, message, err := p.resolveWindow(ctx, req)
	if err != nil {
		return Result{RunID: runID}, err
	}
	res := Result{RunID: runID, Window: w, Message: message}
	logger.Info("batch started", "start", w.Start, "end", w.End, "message", message,
		"initialization", p.opts.Initialization)

	var in inputs
	if err := p.stage("extract", func() error {
		var err error
		in, err = p.extract(ctx, w, logger)
		return err
	}); err != nil {
		return res, err
	}

	var b batch
	if err := p.stage("transform", func() error {
		var err error
		b, err = p.transform(in, p.clock.Now())
		return err
	}); err != nil {
		return res, err
	}

	joinStart := time.Now()
	tables := p.join(b)
	p.observeStage("join", joinStart)

	res.Integrity = domain.CheckIntegrity(tables)
	p.reportIntegrity(res.Integrity, logger)

	if err := p.stage("load", func() error {
		var err error
		res.Loads, err = p.deps.Sink.Load(ctx, tables)
		return err
	}); err != nil {
		return res, fmt.Errorf("load tables: %w", err)
	}

	if p.opts.RecordUpdates && p.deps.Updates != nil {
		u := domain.UpdateRecord{
			RunID:      runID,
			LastUpdate: p.clock.Now().UTC(),
			Start:      w.Start,
			End:        w.End,
			Message:    message,
		}
		if err := p.deps.Updates.RecordUpdate(ctx, u); err != nil {
			return res, err
		}
	}

	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.Publish(ctx, runID, w, res.Loads); err != nil {
			logger.Warn("load notification failed", "error", err)
		}
	}
	return res, nil
}

// resolveWindow returns the explicit window of req or, without one, the month
// following the last recorded update.
func (p *Pipeline) resolveWindow(ctx context.Context, req Request) (domain.Window, string, error) {
	if req.Window != nil {
		w := *req.Window
		if w.End.Before(w.Start) {
			return domain.Window{}, "", fmt.Errorf("window end %s is before start %s", w.End, w.Start)
		}
		return w, messageOr(req.Message, domain.CustomUpdate), nil
	}

	if p.deps.Updates == nil {
		return domain.Window{}, "", errors.New("no update log configured: an explicit window is required")
	}
	last, err := p.deps.Updates.LastUpdate(ctx)
	if err != nil {
		return domain.Window{}, "", fmt.Errorf("check last update: %w", err)
	}
	return domain.NextWindow(last.End), messageOr(req.Message, domain.RegularUpdate), nil
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.observeStage(name, start)
	return err
}

func (p *Pipeline) observeStage(name string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) reportIntegrity(r domain.IntegrityReport, logger *slog.Logger) {
	for dim, n := range r.Misses {
		p.metrics.IntegrityMisses.WithLabelValues(dim).Add(float64(n))
	}
	if r.UnmatchedCrash > 0 {
		p.metrics.IntegrityMisses.WithLabelValues("crash").Add(float64(r.UnmatchedCrash))
	}
	if r.Clean() {
		logger.Info("integrity check passed", "fact_rows", r.FactRows, "skipped", r.Skipped)
		return
	}
	logger.Warn("fact rows cannot be fully joined",
		"fact_rows", r.FactRows,
		"unmatched_crash", r.UnmatchedCrash,
		"misses", r.Misses,
		"skipped", r.Skipped,
	)
}
