package domain

import "time"

// Dataset names one of the three crash-report feeds on the open-data portal.
type Dataset string

const (
	DatasetIncidents    Dataset = "incidents"
	DatasetDrivers      Dataset = "drivers"
	DatasetNonMotorists Dataset = "non-motorists"
)

// FeedSource records where a crash extract came from. It selects the timestamp
// format used when parsing crash_date_time.
type FeedSource uint8

const (
	SourceFile FeedSource = iota
	SourceAPI
)

func (s FeedSource) String() string {
	if s == SourceAPI {
		return "api"
	}
	return "file"
}

// Extract is the raw result of reading one dataset for an update window.
type Extract struct {
	Dataset Dataset
	Source  FeedSource
	Rows    []RawRow
}

// Window is the inclusive [Start, End] range of crash timestamps handled by one run.
type Window struct {
	Start time.Time
	End   time.Time
}

// CrashRecord is one incident report after cleaning.
type CrashRecord struct {
	ReportNumber     string
	LocalCaseNumber  string
	AgencyName       string
	ACRSReportType   string
	Timestamp        time.Time // zero when crash_date_time did not parse
	HitRun           bool
	RouteType        string
	LaneDirection    string
	LaneNumber       int
	NumberOfLanes    int
	RoadGrade        string
	NonTraffic       bool
	RoadName         string
	CrossStreetType  string
	CrossStreetName  string
	OffRoadIncident  bool
	AccidentAtFault  string
	CollisionType    string
	SurfaceCondition string
	Light            string
	TrafficControl   string
	Junction         string
	IntersectionType string
	RoadAlignment    string
	RoadCondition    string
	RoadDivision     string
	Latitude         float64
	Longitude        float64
}

// MappedCrash is a CrashRecord with road, hour, location and non-motorist
// references resolved to warehouse keys.
type MappedCrash struct {
	ReportNumber       string
	LocalCaseNumber    string
	AgencyName         string
	ACRSReportType     string
	HitRun             bool
	LaneDirection      string
	LaneNumber         int
	NumberOfLanes      int
	RoadGrade          string
	NonTraffic         bool
	OffRoadIncident    bool
	AccidentAtFault    string
	CollisionType      string
	SurfaceCondition   string
	Light              string
	TrafficControl     string
	Junction           string
	IntersectionType   string
	RoadAlignment      string
	RoadCondition      string
	RoadDivision       string
	Latitude           float64
	Longitude          float64
	RoadKey            int64
	CrossStreetKey     int64
	DateHourKey        int64
	LocationAreaKey    int64
	NonMotoristsTotal  int
	NonMotoristsInjury int
	NonMotoristsFatal  int
}

// DriverRecord is one driver/vehicle report after cleaning.
type DriverRecord struct {
	ReportNumber              string
	VehicleCrashKey           string
	DriverAtFault             bool
	DriverInjurySeverity      string
	DriverSubstanceAbuse      string
	DriverDistractedBy        string
	VehicleType               string
	VehicleMovement           string
	VehicleGoingDir           string
	VehicleDamageExtent       string
	SpeedLimit                int
	ParkedVehicle             bool
	VehicleYear               int
	VehicleMake               string
	VehicleModel              string
	SubstanceAbuseContributed bool
	VehiclesCrashedTotal      int
}

// MappedDriver is a DriverRecord with its free-text vehicle description
// replaced by a vehicle-dimension key.
type MappedDriver struct {
	ReportNumber              string
	VehicleCrashKey           string
	DriverAtFault             bool
	DriverInjurySeverity      string
	DriverSubstanceAbuse      string
	DriverDistractedBy        string
	VehicleType               string
	VehicleMovement           string
	VehicleGoingDir           string
	VehicleDamageExtent       string
	SpeedLimit                int
	ParkedVehicle             bool
	SubstanceAbuseContributed bool
	VehiclesCrashedTotal      int
	VehicleKey                int64
}

// VehicleCrashFact is one row of the vehicle-crash fact table: a driver row
// joined with its crash row by report number.
type VehicleCrashFact struct {
	MappedDriver
	Crash   MappedCrash
	Matched bool // false when no crash row shared the report number
}
