package domain

import (
	"slices"
	"strings"
)

// InjuryClass is the coarse outcome of a non-motorist injury-severity report.
type InjuryClass uint8

const (
	NoInjury InjuryClass = iota
	Injured
	Fatal
)

func (c InjuryClass) String() string {
	switch c {
	case Fatal:
		return "Fatal"
	case Injured:
		return "Injury"
	default:
		return "No injury"
	}
}

// ClassifyInjury inspects the words of a severity description. "fatal" wins over
// "no", which wins over "injury"; anything else counts as no injury.
func ClassifyInjury(severity string) InjuryClass {
	words := strings.Split(strings.ToLower(severity), " ")
	switch {
	case slices.Contains(words, "fatal"):
		return Fatal
	case slices.Contains(words, "no"):
		return NoInjury
	case slices.Contains(words, "injury"):
		return Injured
	default:
		return NoInjury
	}
}

// NonMotoristAggregate counts the non-motorists involved in one crash.
type NonMotoristAggregate struct {
	ReportNumber string
	Total        int
	Injury       int
	Fatal        int
}

var nonMotoristSchema = Schema{
	{"report_number", Text},
	{"injury_severity", Text},
}

// AggregateNonMotorists groups raw non-motorist rows by report number, sorted by
// report number.
func AggregateNonMotorists(raw []RawRow) []NonMotoristAggregate {
	byReport := map[string]*NonMotoristAggregate{}
	for _, r := range raw {
		p := nonMotoristSchema.Project(r)
		report := p.Text("report_number")
		agg, ok := byReport[report]
		if !ok {
			agg = &NonMotoristAggregate{ReportNumber: report}
			byReport[report] = agg
		}
		agg.Total++
		switch ClassifyInjury(p.Text("injury_severity")) {
		case Fatal:
			agg.Fatal++
		case Injured:
			agg.Injury++
		}
	}

	out := make([]NonMotoristAggregate, 0, len(byReport))
	for _, agg := range byReport {
		out = append(out, *agg)
	}
	slices.SortFunc(out, func(a, b NonMotoristAggregate) int {
		return strings.Compare(a.ReportNumber, b.ReportNumber)
	})
	return out
}
