package domain

// RoadEntry is one row of the road dimension. Cross streets share the
// dimension with primary roads.
type RoadEntry struct {
	RoadKey  int64
	RoadName string
	RoadType string
}

var roadSchema = Schema{
	{"road_name", Category},
	{"route_type", Category},
	{"cross_street_name", Category},
	{"cross_street_type", Category},
}

// BuildRoadDimension collects the distinct (name, type) pairs of both the
// primary road and the cross street of every raw incident row, in first-seen
// order with primary roads first.
func BuildRoadDimension(raw []RawRow) []RoadEntry {
	type pair struct{ name, kind string }

	primary := make([]pair, 0, len(raw))
	cross := make([]pair, 0, len(raw))
	for _, r := range raw {
		p := roadSchema.Project(r)
		primary = append(primary, pair{p.Text("road_name"), p.Text("route_type")})
		cross = append(cross, pair{p.Text("cross_street_name"), p.Text("cross_street_type")})
	}

	seen := make(map[pair]bool, len(primary))
	out := make([]RoadEntry, 0, len(primary))
	for _, p := range append(primary, cross...) {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, RoadEntry{RoadKey: RoadKey(p.name, p.kind), RoadName: p.name, RoadType: p.kind})
	}
	return out
}
