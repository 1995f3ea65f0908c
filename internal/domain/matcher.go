package domain

import (
	"cmp"
	"slices"
	"strings"
)

const (
	makeCutoff  = 0.5
	modelCutoff = 0.2
)

// blockedModels are free-text model values too ambiguous to fuzzy-match.
var blockedModels = map[string]bool{"4s": true, "tk": true}

// AliasPair maps one raw crash-report make spelling to its canonical brand.
type AliasPair struct {
	Raw       string
	Canonical string
}

// BrandAliases is the static make lookup: exact aliases first, then fuzzy
// matching against the canonical brand names.
type BrandAliases struct {
	exact  map[string]string
	brands []string // canonical, first-seen order
	lower  []string
}

// NewBrandAliases builds the lookup from alias pairs in file order.
func NewBrandAliases(pairs []AliasPair) *BrandAliases {
	b := &BrandAliases{exact: make(map[string]string, len(pairs))}
	seen := map[string]bool{}
	for _, p := range pairs {
		b.exact[p.Raw] = p.Canonical
		if !seen[p.Canonical] {
			seen[p.Canonical] = true
			b.brands = append(b.brands, p.Canonical)
			b.lower = append(b.lower, strings.ToLower(p.Canonical))
		}
	}
	return b
}

// Brands returns the distinct canonical brands.
func (b *BrandAliases) Brands() []string {
	return slices.Clone(b.brands)
}

// ModelTriple is one known (make, year, base model) combination.
type ModelTriple struct {
	Make      string
	Year      int
	BaseModel string
}

type catalogKey struct {
	year int
	make string
}

// ModelCatalog lists the base models known for each (year, make). It is
// immutable; Merge returns a new catalog.
type ModelCatalog struct {
	models map[catalogKey][]string
	size   int
}

// NewModelCatalog builds a catalog from triples, dropping duplicates.
func NewModelCatalog(triples []ModelTriple) *ModelCatalog {
	c := &ModelCatalog{models: map[catalogKey][]string{}}
	for _, t := range triples {
		c.add(t)
	}
	return c
}

func (c *ModelCatalog) add(t ModelTriple) {
	k := catalogKey{year: t.Year, make: t.Make}
	if slices.Contains(c.models[k], t.BaseModel) {
		return
	}
	c.models[k] = append(c.models[k], t.BaseModel)
	c.size++
}

// Merge returns a catalog holding this catalog's triples plus those of entries.
func (c *ModelCatalog) Merge(entries []VehicleEntry) *ModelCatalog {
	next := NewModelCatalog(c.Triples())
	for _, e := range entries {
		next.add(ModelTriple{Make: e.Make, Year: e.Year, BaseModel: e.BaseModel})
	}
	return next
}

// Models returns the base models known for (year, make).
func (c *ModelCatalog) Models(year int, vehicleMake string) []string {
	return slices.Clone(c.models[catalogKey{year: year, make: vehicleMake}])
}

// Len returns the number of distinct triples.
func (c *ModelCatalog) Len() int {
	return c.size
}

// Triples returns every triple sorted by make, year, then base model.
func (c *ModelCatalog) Triples() []ModelTriple {
	out := make([]ModelTriple, 0, c.size)
	for k, models := range c.models {
		for _, m := range models {
			out = append(out, ModelTriple{Make: k.make, Year: k.year, BaseModel: m})
		}
	}
	slices.SortFunc(out, compareTriples)
	return out
}

func compareTriples(a, b ModelTriple) int {
	return cmp.Or(
		cmp.Compare(a.Make, b.Make),
		cmp.Compare(a.Year, b.Year),
		cmp.Compare(a.BaseModel, b.BaseModel),
	)
}

// Matcher resolves free-text crash-report vehicle descriptions against the
// brand aliases and the model catalog.
type Matcher struct {
	brands *BrandAliases
	models *ModelCatalog
}

// NewMatcher creates a Matcher over read-only reference data.
func NewMatcher(brands *BrandAliases, models *ModelCatalog) *Matcher {
	return &Matcher{brands: brands, models: models}
}

// MatchMake maps a raw make to a canonical brand, or UnknownLabel.
func (m *Matcher) MatchMake(raw string) string {
	if canonical, ok := m.brands.exact[raw]; ok {
		return canonical
	}
	found, ok := closestMatch(strings.ToLower(raw), m.brands.lower, makeCutoff)
	if !ok {
		return UnknownLabel
	}
	return m.brands.brands[slices.Index(m.brands.lower, found)]
}

// MatchModel maps a raw model to a catalog base model for (year, make), or
// UnknownLabel.
func (m *Matcher) MatchModel(raw, vehicleMake string, year int) string {
	if blockedModels[strings.ToLower(raw)] {
		return UnknownLabel
	}
	candidates := m.models.Models(year, vehicleMake)
	if len(candidates) == 0 {
		return UnknownLabel
	}
	lower := make([]string, len(candidates))
	for i, c := range candidates {
		lower[i] = strings.ToLower(c)
	}
	found, ok := closestMatch(strings.ToLower(raw), lower, modelCutoff)
	if !ok {
		return UnknownLabel
	}
	return candidates[slices.Index(lower, found)]
}

// VehicleKeyFor resolves a raw (make, model, year) description to a vehicle
// key. An unmatched model also discards the year.
func (m *Matcher) VehicleKeyFor(rawMake, rawModel string, year int) int64 {
	vehicleMake := m.MatchMake(rawMake)
	model := m.MatchModel(rawModel, vehicleMake, year)
	if model == UnknownLabel {
		year = 0
	}
	return VehicleKey(vehicleMake, model, year)
}
