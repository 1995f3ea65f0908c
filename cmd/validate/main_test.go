package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/filesink"
	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDump(t *testing.T, tables domain.Tables) string {
	t.Helper()
	dir := t.TempDir()
	s, err := filesink.New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	_, err = s.Load(context.Background(), tables)
	require.NoError(t, err)
	return dir
}

func validTables() domain.Tables {
	road := domain.RoadEntry{RoadKey: 11, RoadName: "GEORGIA AVE", RoadType: "Maryland"}
	vehicle := domain.VehicleEntry{VehicleKey: 7, Make: "Toyota", Year: 2015, BaseModel: "Yaris"}
	slot := domain.DateHourSlot{
		DateHourKey: 2023120110, Hour: 10, TimeOfDay: "AM", DayNumber: 1, WeekDayNumber: 5,
		WeekDayName: "Friday", MonthNumber: 12, MonthName: "December", Year: 2023, HolidayName: domain.NoHoliday,
	}
	area := domain.UnknownLocationArea()
	crash := domain.MappedCrash{
		ReportNumber: "MCP001", LocalCaseNumber: "230001", AgencyName: "Rockville Police",
		ACRSReportType: "Property Damage Crash", LaneDirection: "North", RoadGrade: "Level",
		AccidentAtFault: "Driver", CollisionType: "Rear End", SurfaceCondition: "Dry", Light: "Daylight",
		TrafficControl: "No Controls", Junction: "Non-Intersection", IntersectionType: "N/A",
		RoadAlignment: "Straight", RoadCondition: "No Defects", RoadDivision: "Two-Way",
		RoadKey: road.RoadKey, CrossStreetKey: road.RoadKey, DateHourKey: slot.DateHourKey,
		LocationAreaKey: area.LocationAreaKey,
	}
	driver := domain.MappedDriver{
		ReportNumber: "MCP001", VehicleCrashKey: "abc1", DriverInjurySeverity: "No Apparent Injury",
		DriverSubstanceAbuse: "None", DriverDistractedBy: "Not Distracted", VehicleType: "Passenger Car",
		VehicleMovement: "Moving Constant Speed", VehicleGoingDir: "North", VehicleDamageExtent: "Minor",
		VehicleKey: vehicle.VehicleKey,
	}
	return domain.Tables{
		Roads:         []domain.RoadEntry{road},
		Vehicles:      []domain.VehicleEntry{vehicle},
		LocationAreas: []domain.LocationArea{area},
		DateHours:     []domain.DateHourSlot{slot},
		Weather: []domain.WeatherFact{{
			WeatherKey:      domain.WeatherKey(area.LocationAreaKey, slot.DateHourKey),
			LocationAreaKey: area.LocationAreaKey,
			DateHourKey:     slot.DateHourKey,
		}},
		Facts: domain.JoinVehicleCrashes([]domain.MappedDriver{driver}, []domain.MappedCrash{crash}),
	}
}

func TestRun_ValidDump(t *testing.T) {
	dir := writeDump(t, validTables())

	var out bytes.Buffer
	code := run(dir, &out)
	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_MissingDirectory(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run(filepath.Join(t.TempDir(), "nope"), &out))
	assert.Contains(t, out.String(), "no table dumps found")
}

func TestRun_WithoutLocationAreas(t *testing.T) {
	tables := validTables()
	tables.LocationAreas = nil
	dir := writeDump(t, tables)

	var out bytes.Buffer
	assert.Equal(t, 0, run(dir, &out), out.String())
	assert.Contains(t, out.String(), domain.TableLocationArea+" not dumped")
}

func TestValidateBlanks(t *testing.T) {
	tables := validTables()
	tables.Roads[0].RoadType = ""
	tables.Vehicles[0].BodyClass = ""
	dir := writeDump(t, tables)

	loaded, err := loadTables(dir)
	require.NoError(t, err)

	p := validateBlanks(loaded)
	require.Len(t, p.errors, 1, "optional vehicle specifications may be blank")
	assert.Contains(t, p.errors[0], "RoadDim line 2: RoadType is blank")
}

func TestValidateKeys(t *testing.T) {
	tables := validTables()
	tables.Facts[0].VehicleKey = 999
	tables.Weather[0].DateHourKey = 2023120111
	dir := writeDump(t, tables)

	loaded, err := loadTables(dir)
	require.NoError(t, err)

	p := validateKeys(loaded)
	assert.Equal(t, []string{
		"VehicleCrashFact line 2: VehicleKey 999 not found in VehicleDim",
		"WeatherFact line 2: DateHourKey 2023120111 not found in DateHourDim",
	}, p.errors)
}

func TestLoadCSV_NoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := loadCSV(path)
	require.Error(t, err)
}
