package domain

import (
	"strconv"
	"strings"
)

const (
	fnvOffset64 uint64 = 0xcbf29ce484222325
	fnvPrime64  uint64 = 0x1000193
	keySpace    uint64 = 10_000_000_000_000_000
)

// Hash16 derives a surrogate key of at most 16 decimal digits from s.
//
// It is FNV-1a over the string's code points with a 64-bit accumulator, reduced
// modulo 10^16. Keys must stay stable across releases since they identify rows
// already loaded into the warehouse.
func Hash16(s string) int64 {
	h := fnvOffset64
	for _, r := range s {
		h ^= uint64(r)
		h *= fnvPrime64
	}
	return int64(h % keySpace)
}

// VehicleKey identifies one (make, base model, year) vehicle-dimension row.
func VehicleKey(vehicleMake, baseModel string, year int) int64 {
	return Hash16(stripSpaces(vehicleMake) + stripSpaces(baseModel) + strconv.Itoa(year))
}

// RoadKey identifies one (name, type) road-dimension row. Only the first word of
// the road type contributes.
func RoadKey(name, roadType string) int64 {
	return Hash16(strings.ReplaceAll(name, " ", "_") + firstWord(roadType))
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
