package domain

import (
	"strings"
	"time"
)

var driverSchema = Schema{
	{"report_number", Text},
	{"vehicle_id", Text},
	{"driver_at_fault", Text},
	{"injury_severity", Category},
	{"driver_substance_abuse", Category},
	{"driver_distracted_by", Category},
	{"vehicle_body_type", Category},
	{"vehicle_movement", Category},
	{"vehicle_going_dir", Category},
	{"vehicle_damage_extent", Category},
	{"speed_limit", Number},
	{"parked_vehicle", Text},
	{"vehicle_year", Number},
	{"vehicle_make", Category},
	{"vehicle_model", Category},
}

const minVehicleYear = 1900

// substanceNoise is removed from substance-abuse descriptions, leaving the
// substance name.
var substanceNoise = strings.NewReplacer("present", "", "contributed", "", "detected", "")

// CleanSubstance reduces a substance-abuse description to the substance name,
// collapsing any combination of substances to COMBINATION.
func CleanSubstance(s string) string {
	cleaned := strings.TrimSpace(substanceNoise.Replace(strings.ToLower(s)))
	switch {
	case strings.Contains(cleaned, "combin"):
		return "COMBINATION"
	case cleaned == "":
		return UnknownCategory
	default:
		return strings.ToUpper(cleaned)
	}
}

// ClassifyVehicle maps a body-type description to a coarse vehicle class. Rules
// are checked in order; the first match wins.
func ClassifyVehicle(bodyType string) string {
	v := strings.ToLower(bodyType)
	switch {
	case containsAny(v, "passenger", "utility", "pickup", "van", "wagon", "limousine") && !strings.Contains(v, "over"):
		return "PASSENGER"
	case strings.Contains(v, "emergency"):
		return "EMERGENCY"
	case containsAny(v, "motorcycle", "moped"):
		return "MOTORCYCLE"
	case strings.Contains(v, "bus"):
		return "BUS"
	case strings.Contains(v, "truck"):
		return "TRUCK"
	case strings.Contains(v, "unknown"):
		return UnknownCategory
	default:
		return "OTHER"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NormalizeDrivers cleans raw driver rows and counts the vehicles in each crash.
// Model years outside [1900, now's year + 1] become 0.
func NormalizeDrivers(raw []RawRow, now time.Time) []DriverRecord {
	maxYear := now.Year() + 1

	out := make([]DriverRecord, 0, len(raw))
	perReport := map[string]int{}
	for _, r := range raw {
		p := driverSchema.Project(r)
		substance := p.Text("driver_substance_abuse")
		year := p.Int("vehicle_year")
		if year < minVehicleYear || year > maxYear {
			year = 0
		}
		d := DriverRecord{
			ReportNumber:              p.Text("report_number"),
			VehicleCrashKey:           strings.ReplaceAll(p.Text("vehicle_id"), "-", ""),
			DriverAtFault:             p.Flag("driver_at_fault"),
			DriverInjurySeverity:      p.Text("injury_severity"),
			DriverSubstanceAbuse:      CleanSubstance(substance),
			DriverDistractedBy:        p.Text("driver_distracted_by"),
			VehicleType:               ClassifyVehicle(p.Text("vehicle_body_type")),
			VehicleMovement:           p.Text("vehicle_movement"),
			VehicleGoingDir:           p.Text("vehicle_going_dir"),
			VehicleDamageExtent:       p.Text("vehicle_damage_extent"),
			SpeedLimit:                p.Int("speed_limit"),
			ParkedVehicle:             p.Flag("parked_vehicle"),
			VehicleYear:               year,
			VehicleMake:               p.Text("vehicle_make"),
			VehicleModel:              p.Text("vehicle_model"),
			SubstanceAbuseContributed: strings.Contains(strings.ToLower(substance), "contributed"),
		}
		perReport[d.ReportNumber]++
		out = append(out, d)
	}

	for i := range out {
		out[i].VehiclesCrashedTotal = perReport[out[i].ReportNumber]
	}
	return out
}

// MapDrivers resolves every driver's free-text vehicle description to a
// vehicle-dimension key.
func MapDrivers(drivers []DriverRecord, m *Matcher) []MappedDriver {
	out := make([]MappedDriver, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, MappedDriver{
			ReportNumber:              d.ReportNumber,
			VehicleCrashKey:           d.VehicleCrashKey,
			DriverAtFault:             d.DriverAtFault,
			DriverInjurySeverity:      d.DriverInjurySeverity,
			DriverSubstanceAbuse:      d.DriverSubstanceAbuse,
			DriverDistractedBy:        d.DriverDistractedBy,
			VehicleType:               d.VehicleType,
			VehicleMovement:           d.VehicleMovement,
			VehicleGoingDir:           d.VehicleGoingDir,
			VehicleDamageExtent:       d.VehicleDamageExtent,
			SpeedLimit:                d.SpeedLimit,
			ParkedVehicle:             d.ParkedVehicle,
			SubstanceAbuseContributed: d.SubstanceAbuseContributed,
			VehiclesCrashedTotal:      d.VehiclesCrashedTotal,
			VehicleKey:                m.VehicleKeyFor(d.VehicleMake, d.VehicleModel, d.VehicleYear),
		})
	}
	return out
}
