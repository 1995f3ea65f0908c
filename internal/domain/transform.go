package domain

import (
	"strings"
	"time"
)

const (
	// fileTimeLayout is used by local CSV snapshots, e.g. "12/01/2023 10:15:00 AM".
	fileTimeLayout = "1/2/2006 3:04:05 PM"
	// apiTimeLayout is used by the portal, e.g. "2023-12-01T10:15:00.000". Go accepts
	// a fractional second after the seconds field without it being in the layout.
	apiTimeLayout = "2006-01-02T15:04:05"
)

var crashSchema = Schema{
	{"report_number", Text},
	{"local_case_number", Category},
	{"agency_name", Category},
	{"acrs_report_type", Category},
	{"crash_date_time", Text},
	{"hit_run", Text},
	{"route_type", Category},
	{"lane_direction", Category},
	{"lane_number", Number},
	{"number_of_lanes", Number},
	{"road_grade", Category},
	{"nontraffic", Text},
	{"road_name", Category},
	{"cross_street_type", Category},
	{"cross_street_name", Category},
	{"off_road_description", Text},
	{"at_fault", Category},
	{"collision_type", Category},
	{"surface_condition", Category},
	{"light", Category},
	{"traffic_control", Category},
	{"junction", Category},
	{"intersection_type", Category},
	{"road_alignment", Category},
	{"road_condition", Category},
	{"road_division", Category},
	{"latitude", Number},
	{"longitude", Number},
}

// NormalizeCrashes cleans raw incident rows. The source decides which timestamp
// layout crash_date_time is parsed with.
func NormalizeCrashes(raw []RawRow, source FeedSource) []CrashRecord {
	out := make([]CrashRecord, 0, len(raw))
	for _, r := range raw {
		p := crashSchema.Project(r)
		out = append(out, CrashRecord{
			ReportNumber:     p.Text("report_number"),
			LocalCaseNumber:  p.Text("local_case_number"),
			AgencyName:       p.Text("agency_name"),
			ACRSReportType:   reportType(p.Text("acrs_report_type")),
			Timestamp:        ParseCrashTime(p.Text("crash_date_time"), source),
			HitRun:           p.Flag("hit_run"),
			RouteType:        p.Text("route_type"),
			LaneDirection:    p.Text("lane_direction"),
			LaneNumber:       p.Int("lane_number"),
			NumberOfLanes:    p.Int("number_of_lanes"),
			RoadGrade:        p.Text("road_grade"),
			NonTraffic:       p.Flag("nontraffic"),
			RoadName:         p.Text("road_name"),
			CrossStreetType:  p.Text("cross_street_type"),
			CrossStreetName:  p.Text("cross_street_name"),
			OffRoadIncident:  !isMissing(p.Text("off_road_description")),
			AccidentAtFault:  p.Text("at_fault"),
			CollisionType:    p.Text("collision_type"),
			SurfaceCondition: p.Text("surface_condition"),
			Light:            p.Text("light"),
			TrafficControl:   p.Text("traffic_control"),
			Junction:         p.Text("junction"),
			IntersectionType: p.Text("intersection_type"),
			RoadAlignment:    p.Text("road_alignment"),
			RoadCondition:    p.Text("road_condition"),
			RoadDivision:     p.Text("road_division"),
			Latitude:         p.Number("latitude"),
			Longitude:        p.Number("longitude"),
		})
	}
	return out
}

// reportType drops the redundant "Crash" suffix, e.g. "Injury Crash" becomes
// "Injury". A value that was only "Crash" is unknown.
func reportType(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "Crash", ""))
	if s == "" {
		return UnknownCategory
	}
	return s
}

// ParseCrashTime parses crash_date_time in the layout of the given source.
// Unparseable input yields the zero time.
func ParseCrashTime(s string, source FeedSource) time.Time {
	layout := fileTimeLayout
	if source == SourceAPI {
		layout = apiTimeLayout
	}
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// DateHourKey returns the YYYYMMDDHH key of the hour containing t, or 0 for the
// zero time.
func DateHourKey(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return int64(t.Year())*1_000_000 + int64(t.Month())*10_000 + int64(t.Day())*100 + int64(t.Hour())
}

// MapCrashes resolves each crash's references to warehouse keys. Crashes without
// a non-motorist aggregate get zero counts. A nil resolver maps every crash to the
// unknown area.
func MapCrashes(crashes []CrashRecord, nonMotorists []NonMotoristAggregate, areas LocationResolver) []MappedCrash {
	byReport := make(map[string]NonMotoristAggregate, len(nonMotorists))
	for _, nm := range nonMotorists {
		byReport[nm.ReportNumber] = nm
	}

	out := make([]MappedCrash, 0, len(crashes))
	for _, c := range crashes {
		nm := byReport[c.ReportNumber]
		areaKey := UnknownAreaKey
		if areas != nil {
			areaKey = areas.Resolve(c.Latitude, c.Longitude)
		}
		out = append(out, MappedCrash{
			ReportNumber:       c.ReportNumber,
			LocalCaseNumber:    c.LocalCaseNumber,
			AgencyName:         c.AgencyName,
			ACRSReportType:     c.ACRSReportType,
			HitRun:             c.HitRun,
			LaneDirection:      c.LaneDirection,
			LaneNumber:         c.LaneNumber,
			NumberOfLanes:      c.NumberOfLanes,
			RoadGrade:          c.RoadGrade,
			NonTraffic:         c.NonTraffic,
			OffRoadIncident:    c.OffRoadIncident,
			AccidentAtFault:    c.AccidentAtFault,
			CollisionType:      c.CollisionType,
			SurfaceCondition:   c.SurfaceCondition,
			Light:              c.Light,
			TrafficControl:     c.TrafficControl,
			Junction:           c.Junction,
			IntersectionType:   c.IntersectionType,
			RoadAlignment:      c.RoadAlignment,
			RoadCondition:      c.RoadCondition,
			RoadDivision:       c.RoadDivision,
			Latitude:           c.Latitude,
			Longitude:          c.Longitude,
			RoadKey:            RoadKey(c.RoadName, c.RouteType),
			CrossStreetKey:     RoadKey(c.CrossStreetName, c.CrossStreetType),
			DateHourKey:        DateHourKey(c.Timestamp),
			LocationAreaKey:    areaKey,
			NonMotoristsTotal:  nm.Total,
			NonMotoristsInjury: nm.Injury,
			NonMotoristsFatal:  nm.Fatal,
		})
	}
	return out
}

// CrashTimestamps returns the parsed timestamps of crashes, skipping unparsed ones.
func CrashTimestamps(crashes []CrashRecord) []time.Time {
	out := make([]time.Time, 0, len(crashes))
	for _, c := range crashes {
		if !c.Timestamp.IsZero() {
			out = append(out, c.Timestamp)
		}
	}
	return out
}
