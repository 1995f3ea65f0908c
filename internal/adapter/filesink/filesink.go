// Package filesink writes batch tables as CSV files for inspection instead of
// loading them into the warehouse.
package filesink

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
)

// Sink writes each table to <dir>/<table>.csv.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// New creates a sink rooted at dir, creating it when missing.
func New(dir string, logger *slog.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Sink{dir: dir, logger: logger}, nil
}

type table struct {
	name   string
	header []string
	rows   [][]string
	skip   bool
}

// Load writes the tables present in t, in warehouse load order.
func (s *Sink) Load(_ context.Context, t domain.Tables) ([]domain.TableLoad, error) {
	tables := []table{
		{domain.TableRoad, roadHeader, mapRows(t.Roads, roadRecord), t.Roads == nil},
		{domain.TableVehicle, vehicleHeader, mapRows(t.Vehicles, vehicleRecord), t.Vehicles == nil},
		{domain.TableLocationArea, locationAreaHeader, mapRows(t.LocationAreas, locationAreaRecord), t.LocationAreas == nil},
		{domain.TableDateHour, dateHourHeader, mapRows(t.DateHours, dateHourRecord), t.DateHours == nil},
		{domain.TableWeather, weatherHeader, mapRows(t.Weather, weatherRecord), t.Weather == nil},
		{domain.TableVehicleCrashFact, factHeader, mapRows(t.Facts, factRecord), t.Facts == nil},
	}

	var loads []domain.TableLoad
	for _, tb := range tables {
		if tb.skip {
			continue
		}
		if err := s.write(tb); err != nil {
			return loads, err
		}
		s.logger.Info("table written", "table", tb.name, "rows", len(tb.rows))
		loads = append(loads, domain.TableLoad{Table: tb.name, Rows: len(tb.rows)})
	}
	return loads, nil
}

func (s *Sink) write(tb table) error {
	path := filepath.Join(s.dir, tb.name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", tb.name, err)
	}
	w := csv.NewWriter(f)
	_ = w.Write(tb.header)
	_ = w.WriteAll(tb.rows)
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tb.name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", tb.name, err)
	}
	return nil
}

func mapRows[T any](in []T, f func(T) []string) [][]string {
	out := make([][]string, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func i64(v int64) string { return strconv.FormatInt(v, 10) }
func itoa(v int) string { return strconv.Itoa(v) }
func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
func btoa(v bool) string { return strconv.FormatBool(v) }

var roadHeader = []string{"RoadKey", "RoadName", "RoadType"}

func roadRecord(r domain.RoadEntry) []string {
	return []string{i64(r.RoadKey), r.RoadName, r.RoadType}
}

var vehicleHeader = []string{
	"VehicleKey", "Make", "Year", "BaseModel", "BodyClass", "Cylinders", "Displacement",
	"Transmission", "Drivetrain", "FuelType", "CityMPG", "HighwayMPG",
}

func vehicleRecord(v domain.VehicleEntry) []string {
	return []string{
		i64(v.VehicleKey), v.Make, itoa(v.Year), v.BaseModel, v.BodyClass, ftoa(v.Cylinders), ftoa(v.Displacement),
		v.Transmission, v.Drivetrain, v.FuelType, ftoa(v.CityMPG), ftoa(v.HighwayMPG),
	}
}

var locationAreaHeader = []string{
	"LocationAreaKey", "Zipcode", "MailCity", "ShapeLength", "ShapeArea", "CentroidLatitude", "CentroidLongitude",
}

func locationAreaRecord(a domain.LocationArea) []string {
	return []string{
		i64(a.LocationAreaKey), itoa(a.ZipCode), a.MailCity, ftoa(a.ShapeLength), ftoa(a.ShapeArea),
		ftoa(a.CentroidLatitude), ftoa(a.CentroidLongitude),
	}
}

var dateHourHeader = []string{
	"DateHourKey", "Hour", "TimeOfDay", "DayNumber", "WeekDayNumber", "WeekDayName", "WeekendFlag",
	"MonthNumber", "MonthName", "Year", "HolidayFlag", "HolidayName",
}

func dateHourRecord(s domain.DateHourSlot) []string {
	return []string{
		i64(s.DateHourKey), itoa(s.Hour), s.TimeOfDay, itoa(s.DayNumber), itoa(s.WeekDayNumber), s.WeekDayName,
		itoa(s.WeekendFlag), itoa(s.MonthNumber), s.MonthName, itoa(s.Year), itoa(s.HolidayFlag), s.HolidayName,
	}
}

var weatherHeader = []string{
	"WeatherKey", "LocationAreaKey", "DateHourKey", "Temperature", "Humidity", "Precipitation",
	"Rain", "Snow", "WindSpeed", "WindDirection",
}

func weatherRecord(f domain.WeatherFact) []string {
	return []string{
		i64(f.WeatherKey), i64(f.LocationAreaKey), i64(f.DateHourKey), ftoa(f.Temperature), ftoa(f.Humidity),
		ftoa(f.Precipitation), ftoa(f.Rain), ftoa(f.Snow), ftoa(f.WindSpeed), ftoa(f.WindDirection),
	}
}

var factHeader = []string{
	"ReportNumber", "VehicleCrashKey", "DriverAtFault", "DriverInjurySeverity", "DriverSubstanceAbuse",
	"DriverDistractedBy", "VehicleType", "VehicleMovement", "VehicleGoingDir", "VehicleDamageExtent",
	"SpeedLimit", "ParkedVehicle", "SubstanceAbuseContributed", "VehiclesCrashedTotal", "VehicleKey",
	"LocalCaseNumber", "AgencyName", "ACRSReportType", "HitRun", "LaneDirection", "LaneNumber",
	"NumberOfLanes", "RoadGrade", "NonTraffic", "OffRoadIncident", "AccidentAtFault", "CollisionType",
	"SurfaceCondition", "Light", "TrafficControl", "Junction", "IntersectionType", "RoadAlignment",
	"RoadCondition", "RoadDivision", "Latitude", "Longitude", "RoadKey", "CrossStreetKey", "DateHourKey",
	"LocationAreaKey", "NonMotoristsTotal", "NonMotoristsInjury", "NonMotoristsFatal",
}

func factRecord(f domain.VehicleCrashFact) []string {
	d, c := f.MappedDriver, f.Crash
	return []string{
		d.ReportNumber, d.VehicleCrashKey, btoa(d.DriverAtFault), d.DriverInjurySeverity, d.DriverSubstanceAbuse,
		d.DriverDistractedBy, d.VehicleType, d.VehicleMovement, d.VehicleGoingDir, d.VehicleDamageExtent,
		itoa(d.SpeedLimit), btoa(d.ParkedVehicle), btoa(d.SubstanceAbuseContributed), itoa(d.VehiclesCrashedTotal), i64(d.VehicleKey),
		c.LocalCaseNumber, c.AgencyName, c.ACRSReportType, btoa(c.HitRun), c.LaneDirection, itoa(c.LaneNumber),
		itoa(c.NumberOfLanes), c.RoadGrade, btoa(c.NonTraffic), btoa(c.OffRoadIncident), c.AccidentAtFault, c.CollisionType,
		c.SurfaceCondition, c.Light, c.TrafficControl, c.Junction, c.IntersectionType, c.RoadAlignment,
		c.RoadCondition, c.RoadDivision, ftoa(c.Latitude), ftoa(c.Longitude), i64(c.RoadKey), i64(c.CrossStreetKey), i64(c.DateHourKey),
		i64(c.LocationAreaKey), itoa(c.NonMotoristsTotal), itoa(c.NonMotoristsInjury), itoa(c.NonMotoristsFatal),
	}
}
