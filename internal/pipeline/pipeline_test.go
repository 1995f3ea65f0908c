package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/couchcryptid/vehicle-crash-etl/internal/pipeline"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSource struct {
	rows map[domain.Dataset][]domain.RawRow
	err  error
}

func (m *mockSource) Extract(_ context.Context, d domain.Dataset, _ domain.Window) (domain.Extract, error) {
	if m.err != nil {
		return domain.Extract{}, m.err
	}
	return domain.Extract{Dataset: d, Source: domain.SourceAPI, Rows: m.rows[d]}, nil
}

type mockFeed struct {
	rows []domain.RawRow
	err  error
}

func (m *mockFeed) Vehicles(context.Context) ([]domain.RawRow, error) {
	return m.rows, m.err
}

type mockReference struct {
	aliases []domain.AliasPair
	zones   []domain.Zone
	saved   *domain.ModelCatalog
	saves   int
}

func (m *mockReference) BrandAliases() (*domain.BrandAliases, error) {
	return domain.NewBrandAliases(m.aliases), nil
}

func (m *mockReference) ModelCatalog() (*domain.ModelCatalog, error) {
	if m.saved != nil {
		return m.saved, nil
	}
	return domain.NewModelCatalog(nil), nil
}

func (m *mockReference) SaveModelCatalog(c *domain.ModelCatalog) error {
	m.saved = c
	m.saves++
	return nil
}

func (m *mockReference) Zones() ([]domain.Zone, error) {
	return m.zones, nil
}

type mockSink struct {
	tables *domain.Tables
	err    error
}

func (m *mockSink) Load(_ context.Context, t domain.Tables) ([]domain.TableLoad, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tables = &t
	return []domain.TableLoad{
		{Table: domain.TableVehicle, Rows: len(t.Vehicles)},
		{Table: domain.TableVehicleCrashFact, Rows: len(t.Facts)},
	}, nil
}

type mockUpdates struct {
	last     domain.UpdateRecord
	err      error
	recorded []domain.UpdateRecord
}

func (m *mockUpdates) LastUpdate(context.Context) (domain.UpdateRecord, error) {
	return m.last, m.err
}

func (m *mockUpdates) RecordUpdate(_ context.Context, u domain.UpdateRecord) error {
	m.recorded = append(m.recorded, u)
	return nil
}

type mockNotifier struct {
	runIDs []string
	err    error
}

func (m *mockNotifier) Publish(_ context.Context, runID string, _ domain.Window, _ []domain.TableLoad) error {
	m.runIDs = append(m.runIDs, runID)
	return m.err
}

// weatherAt returns a collector that reports one hour of weather at hour for
// every requested location and records the locations it was asked for.
func weatherAt(hour time.Time, asked *[]domain.WeatherLocation) pipeline.WeatherCollector {
	return func(_ context.Context, locations []domain.WeatherLocation, _ domain.Window) ([]domain.WeatherSeries, error) {
		if asked != nil {
			*asked = locations
		}
		out := make([]domain.WeatherSeries, 0, len(locations))
		for _, loc := range locations {
			out = append(out, domain.WeatherSeries{
				Location: loc,
				Hours:    []domain.WeatherHour{{Time: hour, Temperature: 3.5}},
			})
		}
		return out, nil
	}
}

// --- fixtures ---

func square(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func incident(report, when string) domain.RawRow {
	return domain.RawRow{
		"report_number":   report,
		"agency_name":     "Montgomery County Police",
		"crash_date_time": when,
		"route_type":      "County",
		"road_name":       "ANDERSON AVE",
		"latitude":        "38.5",
		"longitude":       "-77.5",
	}
}

func driver(report, vehicleID string) domain.RawRow {
	return domain.RawRow{
		"report_number": report,
		"vehicle_id":    vehicleID,
		"vehicle_year":  "2015",
		"vehicle_make":  "TOYT",
		"vehicle_model": "YRS",
		"speed_limit":   "35",
	}
}

type fixture struct {
	source    *mockSource
	feed      *mockFeed
	reference *mockReference
	sink      *mockSink
	updates   *mockUpdates
	notifier  *mockNotifier
	weather   pipeline.WeatherCollector
	asked     []domain.WeatherLocation
	clock     *clockwork.FakeClock
	metrics   *observability.Metrics
}

func newFixture() *fixture {
	f := &fixture{
		source: &mockSource{rows: map[domain.Dataset][]domain.RawRow{
			domain.DatasetIncidents:    {incident("MCP001", "2023-12-01T10:15:00.000")},
			domain.DatasetDrivers:      {driver("MCP001", "a1b2-c3d4"), driver("MCP001", "e5f6-0708")},
			domain.DatasetNonMotorists: {{"report_number": "MCP001", "injury_severity": "FATAL INJURY"}},
		}},
		feed: &mockFeed{rows: []domain.RawRow{
			{"make": "Toyota", "baseModel": "Yaris", "year": "2015", "VClass": "Compact Cars", "trany": "Automatic 4-spd", "drive": "Front-Wheel Drive"},
		}},
		reference: &mockReference{
			aliases: []domain.AliasPair{{Raw: "TOYT", Canonical: "Toyota"}, {Raw: "HOND", Canonical: "Honda"}},
			zones:   []domain.Zone{{ZipCode: 20850, MailCity: "Rockville", Geometry: square(-78, 38, -76, 40)}},
		},
		sink:     &mockSink{},
		updates:  &mockUpdates{},
		notifier: &mockNotifier{},
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)),
		metrics:  observability.NewMetricsForTesting(),
	}
	f.weather = weatherAt(time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC), &f.asked)
	return f
}

func (f *fixture) pipeline(opts pipeline.Options) *pipeline.Pipeline {
	return pipeline.New(pipeline.Deps{
		Crashes:   f.source,
		Vehicles:  f.feed,
		Weather:   f.weather,
		Reference: f.reference,
		Sink:      f.sink,
		Updates:   f.updates,
		Notifier:  f.notifier,
		Clock:     f.clock,
	}, opts, slog.New(slog.NewTextHandler(io.Discard, nil)), f.metrics)
}

func dayWindow() *domain.Window {
	return &domain.Window{
		Start: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 12, 1, 23, 0, 0, 0, time.UTC),
	}
}

// --- tests ---

func TestPipeline_Run_ExplicitWindow(t *testing.T) {
	f := newFixture()
	p := f.pipeline(pipeline.Options{RecordUpdates: true})

	res, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
	require.NoError(t, err)
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, domain.CustomUpdate, res.Message)
	assert.Equal(t, *dayWindow(), res.Window)
	assert.Len(t, res.Loads, 2)

	// The freshly normalized catalog is persisted before drivers are mapped.
	assert.Equal(t, 1, f.reference.saves)
	assert.Equal(t, []string{"Yaris"}, f.reference.saved.Models(2015, "Toyota"))

	tables := f.sink.tables
	require.NotNil(t, tables)
	assert.Nil(t, tables.LocationAreas, "location areas load only on initialization")
	assert.Len(t, tables.DateHours, 24)
	require.Len(t, tables.Facts, 2)
	fact := tables.Facts[0]
	assert.Equal(t, domain.VehicleKey("Toyota", "Yaris", 2015), fact.VehicleKey)
	assert.Equal(t, "a1b2c3d4", fact.VehicleCrashKey)
	assert.Equal(t, 2, fact.VehiclesCrashedTotal)
	assert.Equal(t, int64(2023120110), fact.Crash.DateHourKey)
	assert.NotEqual(t, domain.UnknownAreaKey, fact.Crash.LocationAreaKey)
	assert.Equal(t, 1, fact.Crash.NonMotoristsFatal)

	assert.True(t, res.Integrity.Clean(), "misses: %v", res.Integrity.Misses)
	assert.Equal(t, []string{domain.DimLocationArea}, res.Integrity.Skipped)

	for _, loc := range f.asked {
		assert.NotEqual(t, domain.UnknownAreaKey, loc.LocationAreaKey, "unknown area is queried only on initialization")
	}

	require.Len(t, f.updates.recorded, 1)
	u := f.updates.recorded[0]
	assert.Equal(t, res.RunID, u.RunID)
	assert.Equal(t, f.clock.Now(), u.LastUpdate)
	assert.Equal(t, dayWindow().End, u.End)
	assert.Equal(t, domain.CustomUpdate, u.Message)

	assert.Equal(t, []string{res.RunID}, f.notifier.runIDs)
	assert.InDelta(t, 1.0, testutil.ToFloat64(f.metrics.BatchRuns.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(f.metrics.PipelineRunning), 1e-9)
	// extract, transform, join and load each observe their duration.
	assert.Equal(t, 4, testutil.CollectAndCount(f.metrics.StageDuration))
}

func TestPipeline_Run_RegularWindowFromUpdateLog(t *testing.T) {
	f := newFixture()
	f.updates.last = domain.UpdateRecord{End: time.Date(2023, 11, 30, 23, 0, 0, 0, time.UTC)}
	p := f.pipeline(pipeline.Options{})

	res, err := p.Run(context.Background(), pipeline.Request{})
	require.NoError(t, err)

	assert.Equal(t, domain.RegularUpdate, res.Message)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), res.Window.Start)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), res.Window.End)
	assert.Len(t, f.sink.tables.DateHours, 31*24)
	assert.Empty(t, f.updates.recorded, "updates are recorded only when enabled")
}

func TestPipeline_Run_CustomMessage(t *testing.T) {
	f := newFixture()
	p := f.pipeline(pipeline.Options{})

	res, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow(), Message: "backfill"})
	require.NoError(t, err)
	assert.Equal(t, "backfill", res.Message)
}

func TestPipeline_Run_Initialization(t *testing.T) {
	f := newFixture()
	p := f.pipeline(pipeline.Options{Initialization: true})

	res, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
	require.NoError(t, err)

	tables := f.sink.tables
	require.Len(t, tables.LocationAreas, 2)
	assert.Equal(t, domain.UnknownLocationArea(), tables.LocationAreas[1])
	assert.Empty(t, res.Integrity.Skipped)

	var keys []int64
	for _, loc := range f.asked {
		keys = append(keys, loc.LocationAreaKey)
	}
	assert.Contains(t, keys, domain.UnknownAreaKey)

	var makes []string
	for _, v := range tables.Vehicles {
		makes = append(makes, v.Make)
	}
	assert.Contains(t, makes, "Honda", "every known brand gets a placeholder vehicle")
}

func TestPipeline_Run_NoWindowWithoutUpdateLog(t *testing.T) {
	f := newFixture()
	p := pipeline.New(pipeline.Deps{
		Crashes:   f.source,
		Vehicles:  f.feed,
		Weather:   f.weather,
		Reference: f.reference,
		Sink:      f.sink,
	}, pipeline.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)), f.metrics)

	_, err := p.Run(context.Background(), pipeline.Request{})
	require.Error(t, err)
	assert.Nil(t, f.sink.tables)
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(f.metrics.BatchRuns.WithLabelValues("failure")), 1e-9)
}

func TestPipeline_Run_UpdateLogError(t *testing.T) {
	f := newFixture()
	f.updates.err = errors.New("connection refused")
	p := f.pipeline(pipeline.Options{})

	_, err := p.Run(context.Background(), pipeline.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check last update")
}

func TestPipeline_Run_InvalidWindow(t *testing.T) {
	f := newFixture()
	p := f.pipeline(pipeline.Options{})

	w := dayWindow()
	w.Start, w.End = w.End, w.Start
	_, err := p.Run(context.Background(), pipeline.Request{Window: w})
	require.Error(t, err)
}

func TestPipeline_Run_ExtractionFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"crash source", func(f *fixture) { f.source.err = errors.New("no fallback file") }},
		{"vehicle feed", func(f *fixture) { f.feed.err = errors.New("feed unavailable") }},
		{"weather", func(f *fixture) {
			f.weather = func(context.Context, []domain.WeatherLocation, domain.Window) ([]domain.WeatherSeries, error) {
				return nil, multierror.Append(nil, errors.New("archive down"))
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			p := f.pipeline(pipeline.Options{RecordUpdates: true})

			_, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
			require.Error(t, err)
			assert.Nil(t, f.sink.tables, "nothing is loaded after a failed extraction")
			assert.Empty(t, f.updates.recorded)
			assert.Zero(t, f.reference.saves)
		})
	}
}

func TestPipeline_Run_PartialWeather(t *testing.T) {
	f := newFixture()
	f.reference.zones = append(f.reference.zones, domain.Zone{ZipCode: 20814, MailCity: "Bethesda", Geometry: square(-70, 30, -69, 31)})
	full := weatherAt(time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC), nil)
	f.weather = func(ctx context.Context, locations []domain.WeatherLocation, w domain.Window) ([]domain.WeatherSeries, error) {
		series, _ := full(ctx, locations[:1], w)
		return series, multierror.Append(nil, errors.New("zip 20814: timeout"))
	}
	p := f.pipeline(pipeline.Options{})

	_, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
	require.NoError(t, err)
	assert.Len(t, f.sink.tables.Weather, 1)
}

func TestPipeline_Run_LoadFailure(t *testing.T) {
	f := newFixture()
	f.sink.err = errors.New("deadlock")
	p := f.pipeline(pipeline.Options{RecordUpdates: true})

	_, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load tables")
	assert.Empty(t, f.updates.recorded)
	assert.Empty(t, f.notifier.runIDs)
}

func TestPipeline_Run_NotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("broker unavailable")
	p := f.pipeline(pipeline.Options{RecordUpdates: true})

	_, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
	require.NoError(t, err)
	assert.Len(t, f.updates.recorded, 1)
}

func TestPipeline_Run_IntegrityMisses(t *testing.T) {
	f := newFixture()
	f.source.rows[domain.DatasetDrivers] = append(f.source.rows[domain.DatasetDrivers], driver("MCP404", "ffff"))
	p := f.pipeline(pipeline.Options{})

	res, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
	require.NoError(t, err)
	assert.False(t, res.Integrity.Clean())
	assert.Equal(t, 1, res.Integrity.UnmatchedCrash)
	assert.InDelta(t, 1.0, testutil.ToFloat64(f.metrics.IntegrityMisses.WithLabelValues("crash")), 1e-9)
}

func TestPipeline_Run_RejectsConcurrentRuns(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	release := make(chan struct{})
	inner := f.weather
	f.weather = func(ctx context.Context, locations []domain.WeatherLocation, w domain.Window) ([]domain.WeatherSeries, error) {
		close(started)
		<-release
		return inner(ctx, locations, w)
	}
	p := f.pipeline(pipeline.Options{})

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
		errCh <- err
	}()
	<-started

	_, err := p.Run(context.Background(), pipeline.Request{Window: dayWindow()})
	require.ErrorIs(t, err, pipeline.ErrRunInProgress)

	close(release)
	require.NoError(t, <-errCh)
}

func TestPipeline_Trigger(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	inner := f.weather
	f.weather = func(ctx context.Context, locations []domain.WeatherLocation, w domain.Window) ([]domain.WeatherSeries, error) {
		<-release
		return inner(ctx, locations, w)
	}
	p := f.pipeline(pipeline.Options{})

	require.True(t, p.Trigger(context.Background(), dayWindow(), ""))
	assert.False(t, p.Trigger(context.Background(), dayWindow(), ""), "a second batch is rejected while the first runs")

	close(release)
	assert.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPipeline_TriggerThenWait(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	inner := f.weather
	f.weather = func(ctx context.Context, locations []domain.WeatherLocation, w domain.Window) ([]domain.WeatherSeries, error) {
		<-release
		return inner(ctx, locations, w)
	}
	p := f.pipeline(pipeline.Options{})

	require.True(t, p.Trigger(context.Background(), dayWindow(), ""))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded, "the batch is still blocked")

	close(release)
	require.NoError(t, p.Wait(context.Background()))
	require.NotNil(t, f.sink.tables, "Wait returns only after the load")
	assert.Len(t, f.sink.tables.Facts, 2)
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Trigger_CancelAbortsBatch(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	f.weather = func(ctx context.Context, _ []domain.WeatherLocation, _ domain.Window) ([]domain.WeatherSeries, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p := f.pipeline(pipeline.Options{})

	runCtx, cancelRuns := context.WithCancel(context.Background())
	require.True(t, p.Trigger(runCtx, dayWindow(), ""))
	<-started
	cancelRuns()

	require.NoError(t, p.Wait(context.Background()))
	assert.Nil(t, f.sink.tables)
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(f.metrics.BatchRuns.WithLabelValues("failure")), 1e-9)
}

func TestPipeline_WaitWithoutTrigger(t *testing.T) {
	p := newFixture().pipeline(pipeline.Options{})
	assert.NoError(t, p.Wait(context.Background()))
}
