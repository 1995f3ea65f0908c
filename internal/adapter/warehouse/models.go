package warehouse

import (
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
)

// Row types mirror the warehouse tables column for column. Keys are content
// hashes or derived integers, never generated by the database.

type roadRow struct {
	RoadKey  int64  `gorm:"column:RoadKey;primaryKey;autoIncrement:false"`
	RoadName string `gorm:"column:RoadName"`
	RoadType string `gorm:"column:RoadType"`
}

func (roadRow) TableName() string { return domain.TableRoad }

type vehicleRow struct {
	VehicleKey   int64   `gorm:"column:VehicleKey;primaryKey;autoIncrement:false"`
	Make         string  `gorm:"column:Make"`
	Year         int     `gorm:"column:Year"`
	BaseModel    string  `gorm:"column:BaseModel"`
	BodyClass    string  `gorm:"column:BodyClass"`
	Cylinders    float64 `gorm:"column:Cylinders"`
	Displacement float64 `gorm:"column:Displacement"`
	Transmission string  `gorm:"column:Transmission"`
	Drivetrain   string  `gorm:"column:Drivetrain"`
	FuelType     string  `gorm:"column:FuelType"`
	CityMPG      float64 `gorm:"column:CityMPG"`
	HighwayMPG   float64 `gorm:"column:HighwayMPG"`
}

func (vehicleRow) TableName() string { return domain.TableVehicle }

type locationAreaRow struct {
	LocationAreaKey   int64   `gorm:"column:LocationAreaKey;primaryKey;autoIncrement:false"`
	Zipcode           int     `gorm:"column:Zipcode"`
	MailCity          string  `gorm:"column:MailCity"`
	ShapeLength       float64 `gorm:"column:ShapeLength"`
	ShapeArea         float64 `gorm:"column:ShapeArea"`
	CentroidLatitude  float64 `gorm:"column:CentroidLatitude"`
	CentroidLongitude float64 `gorm:"column:CentroidLongitude"`
}

func (locationAreaRow) TableName() string { return domain.TableLocationArea }

type dateHourRow struct {
	DateHourKey   int64  `gorm:"column:DateHourKey;primaryKey;autoIncrement:false"`
	Hour          int    `gorm:"column:Hour"`
	TimeOfDay     string `gorm:"column:TimeOfDay"`
	DayNumber     int    `gorm:"column:DayNumber"`
	WeekDayNumber int    `gorm:"column:WeekDayNumber"`
	WeekDayName   string `gorm:"column:WeekDayName"`
	WeekendFlag   int    `gorm:"column:WeekendFlag"`
	MonthNumber   int    `gorm:"column:MonthNumber"`
	MonthName     string `gorm:"column:MonthName"`
	Year          int    `gorm:"column:Year"`
	HolidayFlag   int    `gorm:"column:HolidayFlag"`
	HolidayName   string `gorm:"column:HolidayName"`
}

func (dateHourRow) TableName() string { return domain.TableDateHour }

type weatherRow struct {
	WeatherKey      int64   `gorm:"column:WeatherKey;primaryKey;autoIncrement:false"`
	LocationAreaKey int64   `gorm:"column:LocationAreaKey;index"`
	DateHourKey     int64   `gorm:"column:DateHourKey;index"`
	Temperature     float64 `gorm:"column:Temperature"`
	Humidity        float64 `gorm:"column:Humidity"`
	Precipitation   float64 `gorm:"column:Precipitation"`
	Rain            float64 `gorm:"column:Rain"`
	Snow            float64 `gorm:"column:Snow"`
	WindSpeed       float64 `gorm:"column:WindSpeed"`
	WindDirection   float64 `gorm:"column:WindDirection"`
}

func (weatherRow) TableName() string { return domain.TableWeather }

type vehicleCrashRow struct {
	ReportNumber              string  `gorm:"column:ReportNumber;primaryKey"`
	VehicleCrashKey           string  `gorm:"column:VehicleCrashKey;primaryKey"`
	DriverAtFault             bool    `gorm:"column:DriverAtFault"`
	DriverInjurySeverity      string  `gorm:"column:DriverInjurySeverity"`
	DriverSubstanceAbuse      string  `gorm:"column:DriverSubstanceAbuse"`
	DriverDistractedBy        string  `gorm:"column:DriverDistractedBy"`
	VehicleType               string  `gorm:"column:VehicleType"`
	VehicleMovement           string  `gorm:"column:VehicleMovement"`
	VehicleGoingDir           string  `gorm:"column:VehicleGoingDir"`
	VehicleDamageExtent       string  `gorm:"column:VehicleDamageExtent"`
	SpeedLimit                int     `gorm:"column:SpeedLimit"`
	ParkedVehicle             bool    `gorm:"column:ParkedVehicle"`
	SubstanceAbuseContributed bool    `gorm:"column:SubstanceAbuseContributed"`
	VehiclesCrashedTotal      int     `gorm:"column:VehiclesCrashedTotal"`
	VehicleKey                int64   `gorm:"column:VehicleKey;index"`
	LocalCaseNumber           string  `gorm:"column:LocalCaseNumber"`
	AgencyName                string  `gorm:"column:AgencyName"`
	ACRSReportType            string  `gorm:"column:ACRSReportType"`
	HitRun                    bool    `gorm:"column:HitRun"`
	LaneDirection             string  `gorm:"column:LaneDirection"`
	LaneNumber                int     `gorm:"column:LaneNumber"`
	NumberOfLanes             int     `gorm:"column:NumberOfLanes"`
	RoadGrade                 string  `gorm:"column:RoadGrade"`
	NonTraffic                bool    `gorm:"column:NonTraffic"`
	OffRoadIncident           bool    `gorm:"column:OffRoadIncident"`
	AccidentAtFault           string  `gorm:"column:AccidentAtFault"`
	CollisionType             string  `gorm:"column:CollisionType"`
	SurfaceCondition          string  `gorm:"column:SurfaceCondition"`
	Light                     string  `gorm:"column:Light"`
	TrafficControl            string  `gorm:"column:TrafficControl"`
	Junction                  string  `gorm:"column:Junction"`
	IntersectionType          string  `gorm:"column:IntersectionType"`
	RoadAlignment             string  `gorm:"column:RoadAlignment"`
	RoadCondition             string  `gorm:"column:RoadCondition"`
	RoadDivision              string  `gorm:"column:RoadDivision"`
	Latitude                  float64 `gorm:"column:Latitude"`
	Longitude                 float64 `gorm:"column:Longitude"`
	RoadKey                   int64   `gorm:"column:RoadKey;index"`
	CrossStreetKey            int64   `gorm:"column:CrossStreetKey"`
	DateHourKey               int64   `gorm:"column:DateHourKey;index"`
	LocationAreaKey           int64   `gorm:"column:LocationAreaKey;index"`
	NonMotoristsTotal         int     `gorm:"column:NonMotoristsTotal"`
	NonMotoristsInjury        int     `gorm:"column:NonMotoristsInjury"`
	NonMotoristsFatal         int     `gorm:"column:NonMotoristsFatal"`
}

func (vehicleCrashRow) TableName() string { return domain.TableVehicleCrashFact }

type metadataRow struct {
	ID            uint      `gorm:"column:MetadataID;primaryKey;autoIncrement"`
	LastUpdate    time.Time `gorm:"column:LastUpdate;index"`
	StartDate     time.Time `gorm:"column:StartDate"`
	EndDate       time.Time `gorm:"column:EndDate"`
	UpdateMessage string    `gorm:"column:UpdateMessage"`
	RunID         string    `gorm:"column:RunID;size:36"`
}

func (metadataRow) TableName() string { return domain.TableMetadata }

// allModels lists every table in load order followed by Metadata.
func allModels() []any {
	return []any{
		&roadRow{}, &vehicleRow{}, &locationAreaRow{}, &dateHourRow{},
		&weatherRow{}, &vehicleCrashRow{}, &metadataRow{},
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func toRoadRow(r domain.RoadEntry) roadRow {
	return roadRow{RoadKey: r.RoadKey, RoadName: r.RoadName, RoadType: r.RoadType}
}

func toVehicleRow(v domain.VehicleEntry) vehicleRow {
	return vehicleRow{
		VehicleKey:   v.VehicleKey,
		Make:         v.Make,
		Year:         v.Year,
		BaseModel:    v.BaseModel,
		BodyClass:    v.BodyClass,
		Cylinders:    v.Cylinders,
		Displacement: v.Displacement,
		Transmission: v.Transmission,
		Drivetrain:   v.Drivetrain,
		FuelType:     v.FuelType,
		CityMPG:      v.CityMPG,
		HighwayMPG:   v.HighwayMPG,
	}
}

func toLocationAreaRow(a domain.LocationArea) locationAreaRow {
	return locationAreaRow{
		LocationAreaKey:   a.LocationAreaKey,
		Zipcode:           a.ZipCode,
		MailCity:          a.MailCity,
		ShapeLength:       a.ShapeLength,
		ShapeArea:         a.ShapeArea,
		CentroidLatitude:  a.CentroidLatitude,
		CentroidLongitude: a.CentroidLongitude,
	}
}

func toDateHourRow(s domain.DateHourSlot) dateHourRow {
	return dateHourRow(s)
}

func toWeatherRow(f domain.WeatherFact) weatherRow {
	return weatherRow(f)
}

func toVehicleCrashRow(f domain.VehicleCrashFact) vehicleCrashRow {
	d, c := f.MappedDriver, f.Crash
	return vehicleCrashRow{
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
		VehicleKey:                d.VehicleKey,
		LocalCaseNumber:           c.LocalCaseNumber,
		AgencyName:                c.AgencyName,
		ACRSReportType:            c.ACRSReportType,
		HitRun:                    c.HitRun,
		LaneDirection:             c.LaneDirection,
		LaneNumber:                c.LaneNumber,
		NumberOfLanes:             c.NumberOfLanes,
		RoadGrade:                 c.RoadGrade,
		NonTraffic:                c.NonTraffic,
		OffRoadIncident:           c.OffRoadIncident,
		AccidentAtFault:           c.AccidentAtFault,
		CollisionType:             c.CollisionType,
		SurfaceCondition:          c.SurfaceCondition,
		Light:                     c.Light,
		TrafficControl:            c.TrafficControl,
		Junction:                  c.Junction,
		IntersectionType:          c.IntersectionType,
		RoadAlignment:             c.RoadAlignment,
		RoadCondition:             c.RoadCondition,
		RoadDivision:              c.RoadDivision,
		Latitude:                  c.Latitude,
		Longitude:                 c.Longitude,
		RoadKey:                   c.RoadKey,
		CrossStreetKey:            c.CrossStreetKey,
		DateHourKey:               c.DateHourKey,
		LocationAreaKey:           c.LocationAreaKey,
		NonMotoristsTotal:         c.NonMotoristsTotal,
		NonMotoristsInjury:        c.NonMotoristsInjury,
		NonMotoristsFatal:         c.NonMotoristsFatal,
	}
}
