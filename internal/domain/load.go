package domain

import (
	"fmt"
	"time"
)

// Target table names, in load order. Dimensions precede the facts that
// reference them.
const (
	TableRoad             = "RoadDim"
	TableVehicle          = "VehicleDim"
	TableLocationArea     = "LocationAreaDim"
	TableDateHour         = "DateHourDim"
	TableWeather          = "WeatherFact"
	TableVehicleCrashFact = "VehicleCrashFact"
	TableMetadata         = "Metadata"
)

// Update messages recorded with each run.
const (
	RegularUpdate = "regular update"
	CustomUpdate  = "custom update"
)

// TableLoad reports how many rows of one table a sink wrote.
type TableLoad struct {
	Table string
	Rows  int
}

// UpdateRecord is the metadata row written after a successful load. The next
// regular update starts one hour after End.
type UpdateRecord struct {
	RunID      string
	LastUpdate time.Time
	Start      time.Time
	End        time.Time
	Message    string
}

// NextWindow returns the one-month window that follows a previous update
// ending at lastEnd: from the next hour to one hour before the same hour a
// month later.
func NextWindow(lastEnd time.Time) Window {
	start := lastEnd.Truncate(time.Hour).Add(time.Hour)
	return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Hour)}
}

// windowLayouts are accepted for explicit window bounds, most specific first.
var windowLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339, "2006-01-02"}

// ParseWindow parses explicit window bounds. Both are read as UTC unless they
// carry an offset, and end must not precede start.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseBound(start)
	if err != nil {
		return Window{}, fmt.Errorf("parse window start: %w", err)
	}
	e, err := parseBound(end)
	if err != nil {
		return Window{}, fmt.Errorf("parse window end: %w", err)
	}
	if e.Before(s) {
		return Window{}, fmt.Errorf("window end %s is before start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

func parseBound(s string) (time.Time, error) {
	for _, layout := range windowLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
