package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var driversNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func driverRow(report, vehicleID, year, vehicleMake, model string) RawRow {
	return RawRow{
		"report_number":          report,
		"vehicle_id":             vehicleID,
		"driver_at_fault":        "Yes",
		"injury_severity":        "NO APPARENT INJURY",
		"driver_substance_abuse": "ALCOHOL CONTRIBUTED",
		"driver_distracted_by":   "NOT DISTRACTED",
		"vehicle_body_type":      "PASSENGER CAR",
		"vehicle_movement":       "MOVING CONSTANT SPEED",
		"vehicle_going_dir":      "North",
		"vehicle_damage_extent":  "FUNCTIONAL",
		"speed_limit":            "35",
		"parked_vehicle":         "No",
		"vehicle_year":           year,
		"vehicle_make":           vehicleMake,
		"vehicle_model":          model,
	}
}

func TestCleanSubstance(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ALCOHOL CONTRIBUTED", "ALCOHOL"},
		{"ALCOHOL PRESENT", "ALCOHOL"},
		{"ILLEGAL DRUG PRESENT", "ILLEGAL DRUG"},
		{"NONE DETECTED", "NONE"},
		{"COMBINED SUBSTANCE PRESENT", "COMBINATION"},
		{"COMBINATION CONTRIBUTED", "COMBINATION"},
		{"UNKNOWN", "UNKNOWN"},
		{"PRESENT", UnknownCategory},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanSubstance(tt.input))
		})
	}
}

func TestClassifyVehicle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PASSENGER CAR", "PASSENGER"},
		{"(SPORT) UTILITY VEHICLE", "PASSENGER"},
		{"PICKUP TRUCK", "PASSENGER"},
		{"CARGO VAN/LIGHT TRUCK 2 AXLES (OVER 10,000LBS (4,536 KG))", "TRUCK"},
		{"STATION WAGON", "PASSENGER"},
		{"POLICE VEHICLE/NON EMERGENCY", "EMERGENCY"},
		{"MOTORCYCLE", "MOTORCYCLE"},
		{"MOPED", "MOTORCYCLE"},
		{"SCHOOL BUS", "BUS"},
		{"TRANSIT BUS", "BUS"},
		{"MEDIUM/HEAVY TRUCKS 3 AXLES (OVER 10,000LBS (4,536KG))", "TRUCK"},
		{"UNKNOWN", "UNKNOWN"},
		{"FARM VEHICLE", "OTHER"},
		{"", "OTHER"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyVehicle(tt.input))
		})
	}
}

func TestNormalizeDrivers(t *testing.T) {
	raw := []RawRow{
		driverRow("MCP001", "a1b2-c3d4", "2015", "TOYT", "YRS"),
		driverRow("MCP001", "e5f6-0708", "1899", "HOND", "CIVIC"),
		driverRow("MCP002", "0909-1010", "2026", "", "nan"),
	}
	raw[2]["driver_substance_abuse"] = "NONE DETECTED"
	raw[2]["vehicle_body_type"] = "n/a"
	raw[2]["speed_limit"] = ""

	got := NormalizeDrivers(raw, driversNow)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, "MCP001", first.ReportNumber)
	assert.Equal(t, "a1b2c3d4", first.VehicleCrashKey)
	assert.True(t, first.DriverAtFault)
	assert.False(t, first.ParkedVehicle)
	assert.Equal(t, "ALCOHOL", first.DriverSubstanceAbuse)
	assert.True(t, first.SubstanceAbuseContributed)
	assert.Equal(t, "PASSENGER", first.VehicleType)
	assert.Equal(t, 35, first.SpeedLimit)
	assert.Equal(t, 2015, first.VehicleYear)
	assert.Equal(t, 2, first.VehiclesCrashedTotal)

	assert.Equal(t, 0, got[1].VehicleYear, "years before 1900 are implausible")
	assert.Equal(t, 2, got[1].VehiclesCrashedTotal)

	last := got[2]
	assert.Equal(t, 0, last.VehicleYear, "years after next year are implausible")
	assert.Equal(t, "NONE", last.DriverSubstanceAbuse)
	assert.False(t, last.SubstanceAbuseContributed)
	assert.Equal(t, UnknownCategory, last.VehicleType)
	assert.Equal(t, UnknownCategory, last.VehicleMake)
	assert.Equal(t, UnknownCategory, last.VehicleModel)
	assert.Zero(t, last.SpeedLimit)
	assert.Equal(t, 1, last.VehiclesCrashedTotal)
}

func TestNormalizeDrivers_NextModelYearAllowed(t *testing.T) {
	got := NormalizeDrivers([]RawRow{driverRow("MCP001", "x", "2025", "TOYT", "YRS")}, driversNow)
	assert.Equal(t, 2025, got[0].VehicleYear)
}

func TestMapDrivers(t *testing.T) {
	m := NewMatcher(testBrands(), testCatalog())
	drivers := NormalizeDrivers([]RawRow{
		driverRow("MCP001", "a1", "2015", "TOYT", "YRS"),
		driverRow("MCP001", "a2", "2015", "TOYOTA", "X3"),
		driverRow("MCP002", "a3", "2015", "", ""),
	}, driversNow)

	got := MapDrivers(drivers, m)
	require.Len(t, got, 3)
	assert.Equal(t, VehicleKey("Toyota", "Yaris", 2015), got[0].VehicleKey)
	assert.Equal(t, VehicleKey("Toyota", UnknownLabel, 0), got[1].VehicleKey)
	assert.Equal(t, VehicleKey(UnknownLabel, UnknownLabel, 0), got[2].VehicleKey)
	assert.Equal(t, drivers[0].VehiclesCrashedTotal, got[0].VehiclesCrashedTotal)
	assert.Equal(t, "a1", got[0].VehicleCrashKey)
}
