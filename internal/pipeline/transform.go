package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
)

// inputs are the raw extracts and reference data of one batch.
type inputs struct {
	incidents    domain.Extract
	drivers      domain.Extract
	nonMotorists domain.Extract
	vehicles     []domain.RawRow
	brands       *domain.BrandAliases
	catalog      *domain.ModelCatalog
	zones        []domain.Zone
	areas        []domain.LocationArea
	weather      []domain.WeatherSeries
	dateHours    []domain.DateHourSlot
}

// batch holds the normalized tables before the cross-table joins.
type batch struct {
	vehicles      []domain.VehicleEntry
	matcher       *domain.Matcher
	drivers       []domain.DriverRecord
	roads         []domain.RoadEntry
	nonMotorists  []domain.NonMotoristAggregate
	crashes       []domain.CrashRecord
	weather       []domain.WeatherFact
	dateHours     []domain.DateHourSlot
	locationAreas []domain.LocationArea
	areaIndex     *domain.AreaIndex
}

func (p *Pipeline) extract(ctx context.Context, w domain.Window, logger *slog.Logger) (inputs, error) {
	var in inputs
	for _, d := range []struct {
		dataset domain.Dataset
		dst     *domain.Extract
	}{
		{domain.DatasetIncidents, &in.incidents},
		{domain.DatasetDrivers, &in.drivers},
		{domain.DatasetNonMotorists, &in.nonMotorists},
	} {
		ext, err := p.deps.Crashes.Extract(ctx, d.dataset, w)
		if err != nil {
			return in, err
		}
		logger.Info("dataset extracted", "dataset", d.dataset, "source", ext.Source, "rows", len(ext.Rows))
		*d.dst = ext
	}

	vehicles, err := p.deps.Vehicles.Vehicles(ctx)
	if err != nil {
		return in, err
	}
	in.vehicles = vehicles
	logger.Info("dataset extracted", "dataset", "vehicles", "rows", len(vehicles))

	if in.brands, err = p.deps.Reference.BrandAliases(); err != nil {
		return in, err
	}
	if in.catalog, err = p.deps.Reference.ModelCatalog(); err != nil {
		return in, err
	}
	if in.zones, err = p.deps.Reference.Zones(); err != nil {
		return in, err
	}
	in.areas = domain.BuildLocationAreas(in.zones)

	locations := domain.WeatherLocations(in.areas, p.opts.Initialization)
	series, err := p.deps.Weather(ctx, locations, w)
	if err != nil {
		if len(series) == 0 && len(locations) > 0 {
			return in, fmt.Errorf("extract weather: %w", err)
		}
		logger.Warn("weather partially unavailable", "locations", len(locations), "fetched", len(series), "error", err)
	}
	in.weather = series
	logger.Info("dataset extracted", "dataset", "weather", "locations", len(series))

	in.dateHours = domain.GenerateDateHours(w.Start, w.End, p.holidays)
	logger.Info("date hours generated", "rows", len(in.dateHours))
	return in, nil
}

// transform normalizes every domain. The model catalog is extended with the
// freshly normalized vehicles, persisted and reloaded before the matcher that
// driver mapping depends on is built. now bounds plausible model years.
func (p *Pipeline) transform(in inputs, now time.Time) (batch, error) {
	var extraMakes []string
	if p.opts.Initialization {
		extraMakes = in.brands.Brands()
	}
	vehicles := domain.NormalizeVehicles(in.vehicles, extraMakes)

	if err := p.deps.Reference.SaveModelCatalog(in.catalog.Merge(vehicles)); err != nil {
		return batch{}, err
	}
	catalog, err := p.deps.Reference.ModelCatalog()
	if err != nil {
		return batch{}, err
	}

	b := batch{
		vehicles:     vehicles,
		matcher:      domain.NewMatcher(in.brands, catalog),
		drivers:      domain.NormalizeDrivers(in.drivers.Rows, now),
		roads:        domain.BuildRoadDimension(in.incidents.Rows),
		nonMotorists: domain.AggregateNonMotorists(in.nonMotorists.Rows),
		crashes:      domain.NormalizeCrashes(in.incidents.Rows, in.incidents.Source),
		weather:      domain.BuildWeatherFacts(in.weather),
		dateHours:    in.dateHours,
		areaIndex:    domain.NewAreaIndex(in.zones),
	}
	if p.opts.Initialization {
		b.locationAreas = in.areas
	}
	return b, nil
}

// join resolves foreign keys and builds the vehicle-crash fact table.
func (p *Pipeline) join(b batch) domain.Tables {
	drivers := domain.MapDrivers(b.drivers, b.matcher)
	crashes := domain.MapCrashes(b.crashes, b.nonMotorists, b.areaIndex)

	return domain.Tables{
		Vehicles:      nonNil(b.vehicles),
		Roads:         nonNil(b.roads),
		LocationAreas: b.locationAreas,
		DateHours:     nonNil(b.dateHours),
		Weather:       nonNil(b.weather),
		Facts:         nonNil(domain.JoinVehicleCrashes(drivers, crashes)),
	}
}

// nonNil marks a produced table as present even when it has no rows.
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
