package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"
)

// BuildLocationAreas derives the location-area dimension from the zip-code zones.
// Zones without geometry, or whose centroid keys to the unknown area, are
// left out so the sentinel appended last is the only row with that key.
func BuildLocationAreas(zones []Zone) []LocationArea {
	out := make([]LocationArea, 0, len(zones)+1)
	for _, z := range zones {
		if z.Geometry == nil {
			continue
		}
		centroid := zoneCentroid(z)
		key := AreaKey(centroid.Lon(), centroid.Lat())
		if key == UnknownAreaKey {
			continue
		}
		out = append(out, LocationArea{
			LocationAreaKey:   key,
			ZipCode:           z.ZipCode,
			MailCity:          z.MailCity,
			ShapeLength:       z.ShapeLength,
			ShapeArea:         z.ShapeArea,
			CentroidLatitude:  centroid.Lat(),
			CentroidLongitude: centroid.Lon(),
		})
	}
	return append(out, UnknownLocationArea())
}

// UnknownLocationArea is the sentinel row every unmatched crash and weather record points at.
func UnknownLocationArea() LocationArea {
	return LocationArea{LocationAreaKey: UnknownAreaKey, MailCity: UnknownLabel}
}

// AreaKey concatenates the first eight digits of lon and lat, with the decimal
// point and minus sign removed, into an integer key.
func AreaKey(lon, lat float64) int64 {
	key, err := strconv.ParseInt(keyDigits(lon)+keyDigits(lat), 10, 64)
	if err != nil {
		return UnknownAreaKey
	}
	return key
}

func keyDigits(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	s = strings.NewReplacer(".", "", "-", "").Replace(s)
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

func zoneCentroid(z Zone) orb.Point {
	if z.Geometry == nil {
		return orb.Point{}
	}
	c, _ := planar.CentroidArea(z.Geometry)
	return c
}

// AreaIndex resolves coordinates to location-area keys. A bounding-box R-tree
// narrows the candidates; exact containment is then tested in zone order so the
// first listed zone wins where zones overlap.
type AreaIndex struct {
	tree  rtree.RTreeG[int]
	zones []indexedZone
}

type indexedZone struct {
	key      int64
	geometry orb.Geometry
}

// NewAreaIndex builds an index over zones, keyed the same way as BuildLocationAreas.
func NewAreaIndex(zones []Zone) *AreaIndex {
	ix := &AreaIndex{zones: make([]indexedZone, 0, len(zones))}
	for _, z := range zones {
		if z.Geometry == nil {
			continue
		}
		c := zoneCentroid(z)
		ix.zones = append(ix.zones, indexedZone{key: AreaKey(c.Lon(), c.Lat()), geometry: z.Geometry})
		b := z.Geometry.Bound()
		ix.tree.Insert(b.Min, b.Max, len(ix.zones)-1)
	}
	return ix
}

// Len returns the number of indexed zones.
func (ix *AreaIndex) Len() int {
	return len(ix.zones)
}

// Resolve returns the key of the first zone containing (lat, lon), or
// UnknownAreaKey when none does or the coordinate is not finite.
func (ix *AreaIndex) Resolve(lat, lon float64) int64 {
	if !finite(lat) || !finite(lon) {
		return UnknownAreaKey
	}
	pt := orb.Point{lon, lat}

	var candidates []int
	ix.tree.Search(pt, pt, func(_, _ [2]float64, i int) bool {
		candidates = append(candidates, i)
		return true
	})
	slices.Sort(candidates)

	for _, i := range candidates {
		if contains(ix.zones[i].geometry, pt) {
			return ix.zones[i].key
		}
	}
	return UnknownAreaKey
}

func contains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	case orb.Bound:
		return geom.Contains(pt)
	default:
		return false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
