package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrands() *BrandAliases {
	return NewBrandAliases([]AliasPair{
		{Raw: "TOYT", Canonical: "Toyota"},
		{Raw: "TOYOTA", Canonical: "Toyota"},
		{Raw: "HOND", Canonical: "Honda"},
		{Raw: "FORD", Canonical: "Ford"},
		{Raw: "LNDR", Canonical: "Land Rover"},
	})
}

func testCatalog() *ModelCatalog {
	return NewModelCatalog([]ModelTriple{
		{Make: "Toyota", Year: 2015, BaseModel: "Camry"},
		{Make: "Toyota", Year: 2015, BaseModel: "Yaris"},
		{Make: "Toyota", Year: 2015, BaseModel: "Corolla"},
		{Make: "Toyota", Year: 2015, BaseModel: "Yaris"},
		{Make: "Honda", Year: 2018, BaseModel: "Civic"},
		{Make: "Toyota", Year: 0, BaseModel: "Unknown"},
	})
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"toyota", "oyota", 0.9090909090909091},
		{"yaris", "yrs", 0.75},
		{"camry", "yrs", 0.25},
		{"corolla", "yrs", 0.2},
		{"abcd", "bcda", 0.75},
		{"private", "pirate", 0.7692307692307693},
		{"honda", "toyota", 0.36363636363636365},
		{"x3", "yaris", 0},
		{"", "", 1},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarity(tt.a, tt.b), 1e-12)
		})
	}
}

func TestClosestMatch(t *testing.T) {
	got, ok := closestMatch("oyota", []string{"toyota", "honda", "ford"}, 0.5)
	require.True(t, ok)
	assert.Equal(t, "toyota", got)

	got, ok = closestMatch("ab", []string{"ba", "ab2", "xab"}, 0.2)
	require.True(t, ok)
	assert.Equal(t, "xab", got, "ties go to the lexically greatest candidate")

	_, ok = closestMatch("zzz", []string{"toyota", "honda"}, 0.5)
	assert.False(t, ok)

	_, ok = closestMatch("anything", nil, 0)
	assert.False(t, ok)
}

func TestMatcher_MatchMake(t *testing.T) {
	m := NewMatcher(testBrands(), testCatalog())

	tests := []struct {
		raw  string
		want string
	}{
		{"TOYT", "Toyota"},
		{"LNDR", "Land Rover"},
		{"oYOTA", "Toyota"},
		{"honda", "Honda"},
		{"zzz", UnknownLabel},
		{"", UnknownLabel},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, m.MatchMake(tt.raw))
		})
	}
}

func TestMatcher_MatchModel(t *testing.T) {
	m := NewMatcher(testBrands(), testCatalog())

	tests := []struct {
		name string
		raw  string
		make string
		year int
		want string
	}{
		{"fuzzy abbreviation", "yrs", "Toyota", 2015, "Yaris"},
		{"case insensitive", "CAMRY", "Toyota", 2015, "Camry"},
		{"no similar model", "X3", "Toyota", 2015, UnknownLabel},
		{"blocked value", "4S", "Toyota", 2015, UnknownLabel},
		{"blocked value lowercase", "tk", "Toyota", 2015, UnknownLabel},
		{"year not in catalog", "Camry", "Toyota", 1999, UnknownLabel},
		{"make not in catalog", "Civic", "Ford", 2018, UnknownLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.MatchModel(tt.raw, tt.make, tt.year))
		})
	}
}

func TestMatcher_VehicleKeyFor(t *testing.T) {
	m := NewMatcher(testBrands(), testCatalog())

	assert.Equal(t, VehicleKey("Toyota", "Yaris", 2015), m.VehicleKeyFor("oYOTA", "yrs", 2015))
	assert.Equal(t, int64(8865406038721857), m.VehicleKeyFor("TOYT", "yrs", 2015))
	assert.Equal(t, VehicleKey("Toyota", UnknownLabel, 0), m.VehicleKeyFor("TOYOTA", "X3", 2015), "unknown model drops the year")
	assert.Equal(t, VehicleKey(UnknownLabel, UnknownLabel, 0), m.VehicleKeyFor("zzz", "whatever", 2015))
}

func TestModelCatalog(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, 5, c.Len(), "duplicates dropped")
	assert.Equal(t, []string{"Camry", "Yaris", "Corolla"}, c.Models(2015, "Toyota"))
	assert.Empty(t, c.Models(2015, "Ford"))

	merged := c.Merge([]VehicleEntry{
		{Make: "Ford", Year: 2020, BaseModel: "F150"},
		{Make: "Toyota", Year: 2015, BaseModel: "Camry"},
	})
	assert.Equal(t, 6, merged.Len())
	assert.Equal(t, 5, c.Len(), "merge leaves the receiver unchanged")
	assert.Equal(t, []string{"F150"}, merged.Models(2020, "Ford"))

	triples := merged.Triples()
	require.Len(t, triples, 6)
	assert.Equal(t, ModelTriple{Make: "Ford", Year: 2020, BaseModel: "F150"}, triples[0])
	assert.Equal(t, ModelTriple{Make: "Honda", Year: 2018, BaseModel: "Civic"}, triples[1])
	assert.Equal(t, ModelTriple{Make: "Toyota", Year: 0, BaseModel: "Unknown"}, triples[2])
	assert.Equal(t, ModelTriple{Make: "Toyota", Year: 2015, BaseModel: "Camry"}, triples[3])
}

func TestBrandAliases_Brands(t *testing.T) {
	assert.Equal(t, []string{"Toyota", "Honda", "Ford", "Land Rover"}, testBrands().Brands())
}
