package domain

import "github.com/paulmach/orb"

// UnknownAreaKey is the location-area key for points outside every zone.
const UnknownAreaKey int64 = 0

// Zone is one zip-code polygon from the static county zip-code file.
type Zone struct {
	ZipCode     int
	MailCity    string
	ShapeLength float64
	ShapeArea   float64
	Geometry    orb.Geometry // Polygon or MultiPolygon, (lon, lat) order
}

// LocationArea is one row of the location-area dimension.
type LocationArea struct {
	LocationAreaKey   int64
	ZipCode           int
	MailCity          string
	ShapeLength       float64
	ShapeArea         float64
	CentroidLatitude  float64
	CentroidLongitude float64
}

// LocationResolver maps a coordinate to the key of the zone containing it.
type LocationResolver interface {
	Resolve(lat, lon float64) int64
}
