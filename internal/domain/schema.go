package domain

import (
	"math"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"
)

const (
	// UnknownCategory replaces missing categorical values in crash-report tables.
	UnknownCategory = "UNKNOWN"
	// UnknownLabel replaces missing values in vehicle-specification tables.
	UnknownLabel = "Unknown"
)

// RawRow is one untyped record as delivered by a source feed, keyed by column name.
type RawRow map[string]string

// Kind declares how a raw column is coerced and what replaces a missing value.
type Kind uint8

const (
	// Text values are trimmed and NFC-normalized. Missing becomes "".
	Text Kind = iota
	// Category values collapse blank, "nan", "n/a" and any casing of "unknown" to UnknownCategory.
	Category
	// Label values fall back to UnknownLabel when blank or "nan".
	Label
	// Number values are parsed as float64. Missing or unparseable becomes 0.
	Number
)

// Column binds a raw source column to its Kind.
type Column struct {
	Source string
	Kind   Kind
}

// Schema is the declared column set of one raw feed.
type Schema []Column

// Projection is one row after the schema's null policy has been applied.
type Projection struct {
	text map[string]string
	num  map[string]float64
}

// Project applies every column's null policy to raw. Columns absent from raw are
// treated as missing.
func (s Schema) Project(raw RawRow) Projection {
	p := Projection{
		text: make(map[string]string, len(s)),
		num:  make(map[string]float64),
	}
	for _, col := range s {
		v := cleanText(raw[col.Source])
		switch col.Kind {
		case Text:
			p.text[col.Source] = v
		case Category:
			if isMissing(v) || strings.EqualFold(v, "unknown") || strings.EqualFold(v, "n/a") {
				v = UnknownCategory
			}
			p.text[col.Source] = v
		case Label:
			if isMissing(v) {
				v = UnknownLabel
			}
			p.text[col.Source] = v
		case Number:
			p.num[col.Source] = parseNumber(v)
		}
	}
	return p
}

// Text returns a Text, Category or Label column.
func (p Projection) Text(source string) string {
	return p.text[source]
}

// Number returns a Number column.
func (p Projection) Number(source string) float64 {
	return p.num[source]
}

// Int returns a Number column truncated toward zero.
func (p Projection) Int(source string) int {
	return int(p.num[source])
}

// Flag reports whether a Text column equals "Yes".
func (p Projection) Flag(source string) bool {
	return p.text[source] == "Yes"
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func isMissing(s string) bool {
	return s == "" || strings.EqualFold(s, "nan")
}

func parseNumber(s string) float64 {
	if isMissing(s) {
		return 0
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
