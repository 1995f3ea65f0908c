package domain

import (
	"fmt"
	"time"
)

// WeatherLocation is one point the weather archive is queried for: the
// centroid of a location area.
type WeatherLocation struct {
	LocationAreaKey int64
	ZipCode         int
	Latitude        float64
	Longitude       float64
}

// WeatherHour holds the measurements of one local wall-clock hour.
type WeatherHour struct {
	Time          time.Time
	Temperature   float64
	Humidity      float64
	Precipitation float64
	Rain          float64
	Snow          float64
	WindSpeed     float64
	WindDirection float64
}

// WeatherSeries is the hourly history returned for one location.
type WeatherSeries struct {
	Location WeatherLocation
	Hours    []WeatherHour
}

// WeatherFact is one row of the weather fact table.
type WeatherFact struct {
	WeatherKey      int64
	LocationAreaKey int64
	DateHourKey     int64
	Temperature     float64
	Humidity        float64
	Precipitation   float64
	Rain            float64
	Snow            float64
	WindSpeed       float64
	WindDirection   float64
}

// WeatherKey identifies one (location area, hour) weather row.
func WeatherKey(locationAreaKey, dateHourKey int64) int64 {
	return Hash16(fmt.Sprintf("%d_%d", locationAreaKey, dateHourKey))
}

// WeatherLocations lists the location areas to query weather for. The unknown
// area is included only when includeUnknown is set, which happens when the
// warehouse is first initialized.
func WeatherLocations(areas []LocationArea, includeUnknown bool) []WeatherLocation {
	out := make([]WeatherLocation, 0, len(areas))
	seen := map[int64]bool{}
	for _, a := range areas {
		if a.LocationAreaKey == UnknownAreaKey && !includeUnknown {
			continue
		}
		if seen[a.LocationAreaKey] {
			continue
		}
		seen[a.LocationAreaKey] = true
		out = append(out, WeatherLocation{
			LocationAreaKey: a.LocationAreaKey,
			ZipCode:         a.ZipCode,
			Latitude:        a.CentroidLatitude,
			Longitude:       a.CentroidLongitude,
		})
	}
	return out
}

// BuildWeatherFacts flattens per-location series into fact rows. Hours repeated
// within a location keep their first occurrence.
func BuildWeatherFacts(series []WeatherSeries) []WeatherFact {
	var out []WeatherFact
	seen := map[int64]bool{}
	for _, s := range series {
		for _, h := range s.Hours {
			dateHour := DateHourKey(h.Time)
			key := WeatherKey(s.Location.LocationAreaKey, dateHour)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, WeatherFact{
				WeatherKey:      key,
				LocationAreaKey: s.Location.LocationAreaKey,
				DateHourKey:     dateHour,
				Temperature:     h.Temperature,
				Humidity:        h.Humidity,
				Precipitation:   h.Precipitation,
				Rain:            h.Rain,
				Snow:            h.Snow,
				WindSpeed:       h.WindSpeed,
				WindDirection:   h.WindDirection,
			})
		}
	}
	return out
}
