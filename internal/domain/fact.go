package domain

import "slices"

// JoinVehicleCrashes left-joins mapped drivers with mapped crashes on report
// number. Drivers without a crash keep sentinel crash attributes and are marked
// unmatched. When several crashes share a report number the first one wins.
func JoinVehicleCrashes(drivers []MappedDriver, crashes []MappedCrash) []VehicleCrashFact {
	byReport := make(map[string]MappedCrash, len(crashes))
	for _, c := range crashes {
		if _, ok := byReport[c.ReportNumber]; !ok {
			byReport[c.ReportNumber] = c
		}
	}

	out := make([]VehicleCrashFact, 0, len(drivers))
	for _, d := range drivers {
		c, ok := byReport[d.ReportNumber]
		if !ok {
			c = unmatchedCrash(d.ReportNumber)
		}
		out = append(out, VehicleCrashFact{MappedDriver: d, Crash: c, Matched: ok})
	}
	return out
}

func unmatchedCrash(report string) MappedCrash {
	return MappedCrash{
		ReportNumber:     report,
		AgencyName:       UnknownCategory,
		ACRSReportType:   UnknownCategory,
		LaneDirection:    UnknownCategory,
		RoadGrade:        UnknownCategory,
		AccidentAtFault:  UnknownCategory,
		CollisionType:    UnknownCategory,
		SurfaceCondition: UnknownCategory,
		Light:            UnknownCategory,
		TrafficControl:   UnknownCategory,
		Junction:         UnknownCategory,
		IntersectionType: UnknownCategory,
		RoadAlignment:    UnknownCategory,
		RoadCondition:    UnknownCategory,
		RoadDivision:     UnknownCategory,
		RoadKey:          RoadKey(UnknownCategory, UnknownCategory),
		CrossStreetKey:   RoadKey(UnknownCategory, UnknownCategory),
		LocationAreaKey:  UnknownAreaKey,
	}
}

// Dimension names reported by CheckIntegrity.
const (
	DimVehicle      = "VehicleDim"
	DimRoad         = "RoadDim"
	DimCrossStreet  = "RoadDim.CrossStreet"
	DimLocationArea = "LocationAreaDim"
	DimDateHour     = "DateHourDim"
	DimWeather      = "WeatherFact"
)

// Tables is the set of finished tables produced by one batch. Nil slices mean
// the table was not produced in this batch.
type Tables struct {
	Vehicles      []VehicleEntry
	Roads         []RoadEntry
	LocationAreas []LocationArea
	DateHours     []DateHourSlot
	Weather       []WeatherFact
	Facts         []VehicleCrashFact
}

// IntegrityReport counts fact references that do not resolve against the
// dimensions present in a batch.
type IntegrityReport struct {
	FactRows       int
	UnmatchedCrash int            // driver rows without a crash row
	Misses         map[string]int // dimension name -> unresolved references
	Skipped        []string       // dimensions absent from the batch
}

// Clean reports whether every checked reference resolved.
func (r IntegrityReport) Clean() bool {
	if r.UnmatchedCrash > 0 {
		return false
	}
	for _, n := range r.Misses {
		if n > 0 {
			return false
		}
	}
	return true
}

// CheckIntegrity verifies that every fact row's keys exist in the batch's
// dimensions. Sentinel keys count as resolved when the dimension holds them.
// A dimension missing from t is listed in Skipped rather than checked.
func CheckIntegrity(t Tables) IntegrityReport {
	r := IntegrityReport{FactRows: len(t.Facts), Misses: map[string]int{}}

	var (
		vehicles = keySet(t.Vehicles, func(v VehicleEntry) int64 { return v.VehicleKey })
		roads    = keySet(t.Roads, func(v RoadEntry) int64 { return v.RoadKey })
		areas    = keySet(t.LocationAreas, func(v LocationArea) int64 { return v.LocationAreaKey })
		hours    = keySet(t.DateHours, func(v DateHourSlot) int64 { return v.DateHourKey })
		weather  = keySet(t.Weather, func(v WeatherFact) int64 { return v.WeatherKey })
	)
	for name, set := range map[string]map[int64]bool{
		DimVehicle: vehicles, DimRoad: roads, DimLocationArea: areas, DimDateHour: hours, DimWeather: weather,
	} {
		if set == nil {
			r.Skipped = append(r.Skipped, name)
		}
	}
	slices.Sort(r.Skipped)

	miss := func(set map[int64]bool, dim string, key int64) {
		if set != nil && !set[key] {
			r.Misses[dim]++
		}
	}
	for _, f := range t.Facts {
		if !f.Matched {
			r.UnmatchedCrash++
		}
		miss(vehicles, DimVehicle, f.VehicleKey)
		miss(roads, DimRoad, f.Crash.RoadKey)
		miss(roads, DimCrossStreet, f.Crash.CrossStreetKey)
		miss(areas, DimLocationArea, f.Crash.LocationAreaKey)
		if f.Crash.DateHourKey != 0 {
			miss(hours, DimDateHour, f.Crash.DateHourKey)
			miss(weather, DimWeather, WeatherKey(f.Crash.LocationAreaKey, f.Crash.DateHourKey))
		}
	}
	return r
}

func keySet[T any](rows []T, key func(T) int64) map[int64]bool {
	if rows == nil {
		return nil
	}
	set := make(map[int64]bool, len(rows))
	for _, row := range rows {
		set[key(row)] = true
	}
	return set
}
