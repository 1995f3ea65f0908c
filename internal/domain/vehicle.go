package domain

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// VehicleEntry is one row of the vehicle dimension: the most common
// specification of a (make, year, base model).
type VehicleEntry struct {
	VehicleKey   int64
	Make         string
	Year         int
	BaseModel    string
	BodyClass    string
	Cylinders    float64
	Displacement float64
	Transmission string
	Drivetrain   string
	FuelType     string
	CityMPG      float64
	HighwayMPG   float64
}

var vehicleSchema = Schema{
	{"id", Number},
	{"make", Label},
	{"baseModel", Label},
	{"year", Number},
	{"VClass", Label},
	{"cylinders", Number},
	{"displ", Number},
	{"trany", Label},
	{"drive", Label},
	{"fuelType1", Label},
	{"city08", Number},
	{"highway08", Number},
}

var gearsPattern = regexp.MustCompile(`\d+`)

// NormalizeTransmission reduces a feed transmission description to
// "Automatic N" or "Manual N", where N is the first number in the text or "CVT".
func NormalizeTransmission(s string) string {
	if s == UnknownLabel {
		return s
	}
	gears := gearsPattern.FindString(s)
	if gears == "" {
		gears = "CVT"
	}
	switch {
	case strings.Contains(s, "Automatic"):
		return "Automatic " + gears
	case strings.Contains(s, "Manual"):
		return "Manual " + gears
	default:
		return s
	}
}

// NormalizeDrivetrain abbreviates feed drivetrain descriptions.
func NormalizeDrivetrain(s string) string {
	switch s {
	case "Front-Wheel Drive":
		return "FWD"
	case "Rear-Wheel Drive":
		return "RWD"
	case "4-Wheel or All-Wheel Drive", "All-Wheel Drive":
		return "AWD"
	case "4-Wheel Drive", "Part-time 4-Wheel Drive":
		return "4WD"
	case "2-Wheel Drive":
		return "2WD"
	default:
		return s
	}
}

// PlaceholderVehicle is the catch-all entry for a make whose model could not be
// resolved.
func PlaceholderVehicle(vehicleMake string) VehicleEntry {
	return VehicleEntry{
		Make:         vehicleMake,
		BaseModel:    UnknownLabel,
		BodyClass:    UnknownLabel,
		Transmission: UnknownLabel,
		Drivetrain:   UnknownLabel,
		FuelType:     UnknownLabel,
	}
}

type vehicleGroup struct {
	make      string
	year      int
	baseModel string
}

// NormalizeVehicles builds the vehicle dimension from raw specification rows.
// A placeholder entry is added for every make in the feed, every make in
// extraMakes and the unknown make, so any resolved make has a fallback key.
// Rows sharing (make, year, base model) collapse to the per-attribute mode. The
// result is sorted by make, year and base model.
func NormalizeVehicles(raw []RawRow, extraMakes []string) []VehicleEntry {
	rows := make([]VehicleEntry, 0, len(raw))
	for _, r := range raw {
		p := vehicleSchema.Project(r)
		rows = append(rows, VehicleEntry{
			Make:         p.Text("make"),
			Year:         p.Int("year"),
			BaseModel:    p.Text("baseModel"),
			BodyClass:    p.Text("VClass"),
			Cylinders:    p.Number("cylinders"),
			Displacement: p.Number("displ"),
			Transmission: NormalizeTransmission(p.Text("trany")),
			Drivetrain:   NormalizeDrivetrain(p.Text("drive")),
			FuelType:     p.Text("fuelType1"),
			CityMPG:      p.Number("city08"),
			HighwayMPG:   p.Number("highway08"),
		})
	}

	makes := map[string]bool{UnknownLabel: true}
	for _, r := range rows {
		makes[r.Make] = true
	}
	for _, m := range extraMakes {
		makes[m] = true
	}
	for m := range makes {
		rows = append(rows, PlaceholderVehicle(m))
	}

	groups := map[vehicleGroup][]VehicleEntry{}
	for _, r := range rows {
		g := vehicleGroup{make: r.Make, year: r.Year, baseModel: r.BaseModel}
		groups[g] = append(groups[g], r)
	}

	out := make([]VehicleEntry, 0, len(groups))
	for g, members := range groups {
		out = append(out, VehicleEntry{
			VehicleKey:   VehicleKey(g.make, g.baseModel, g.year),
			Make:         g.make,
			Year:         g.year,
			BaseModel:    g.baseModel,
			BodyClass:    modeOf(members, func(e VehicleEntry) string { return e.BodyClass }),
			Cylinders:    modeOf(members, func(e VehicleEntry) float64 { return e.Cylinders }),
			Displacement: modeOf(members, func(e VehicleEntry) float64 { return e.Displacement }),
			Transmission: modeOf(members, func(e VehicleEntry) string { return e.Transmission }),
			Drivetrain:   modeOf(members, func(e VehicleEntry) string { return e.Drivetrain }),
			FuelType:     modeOf(members, func(e VehicleEntry) string { return e.FuelType }),
			CityMPG:      modeOf(members, func(e VehicleEntry) float64 { return e.CityMPG }),
			HighwayMPG:   modeOf(members, func(e VehicleEntry) float64 { return e.HighwayMPG }),
		})
	}
	slices.SortFunc(out, func(a, b VehicleEntry) int {
		return cmp.Or(
			cmp.Compare(a.Make, b.Make),
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.BaseModel, b.BaseModel),
		)
	})
	return out
}

// modeOf returns the most frequent value of field across members. Ties go to
// the smallest value.
func modeOf[T cmp.Ordered](members []VehicleEntry, field func(VehicleEntry) T) T {
	counts := make(map[T]int, len(members))
	for _, m := range members {
		counts[field(m)]++
	}
	var best T
	bestCount := 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// String renders the entry's identifying triple.
func (e VehicleEntry) String() string {
	return fmt.Sprintf("%s %s (%d)", e.Make, e.BaseModel, e.Year)
}
