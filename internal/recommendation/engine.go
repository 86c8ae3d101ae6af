// Package recommendation turns a session summary into ordered advisory cards.
package recommendation

import (
	"slices"

	"github.com/agrodrone/backend/internal/vegetation"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Card is one piece of advice shown after an analysis.
type Card struct {
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Actions  []string `json:"actions"`
}

// Category groups rules that look at one metric.
type Category string

const (
	CategoryCanopy  Category = "canopy"
	CategoryStress  Category = "stress"
	CategoryVARI    Category = "vari"
	CategoryEXG     Category = "exg"
	CategoryGLI     Category = "gli"
	CategoryYield   Category = "yield"
	CategoryWeed    Category = "weed"
	CategoryOverall Category = "overall"
)

// Categories lists every category in evaluation order.
var Categories = []Category{
	CategoryCanopy,
	CategoryStress,
	CategoryVARI,
	CategoryEXG,
	CategoryGLI,
	CategoryYield,
	CategoryWeed,
	CategoryOverall,
}

// metrics is a summary with absent values resolved to zero.
type metrics struct {
	canopy, stress, yield, vari, gli, exg float64
}

func fromSummary(s vegetation.Summary) metrics {
	return metrics{
		canopy: vegetation.Value(s.CanopyCover),
		stress: vegetation.Value(s.StressPercentage),
		yield:  vegetation.Value(s.YieldEstimate),
		vari:   vegetation.Value(s.VARI),
		gli:    vegetation.Value(s.GLI),
		exg:    vegetation.Value(s.EXG),
	}
}

type rule struct {
	when func(m metrics) bool
	card Card
}

var rules = map[Category][]rule{
	CategoryCanopy: {
		{func(m metrics) bool { return m.canopy < 40 }, lowCanopy},
		{func(m metrics) bool { return m.canopy > 70 }, healthyCanopy},
	},
	CategoryStress: {
		{func(m metrics) bool { return m.stress > 15 }, highStress},
		{func(m metrics) bool { return m.stress > 5 && m.stress <= 15 }, moderateStress},
	},
	CategoryVARI: {
		{func(m metrics) bool { return m.vari < 0.2 }, lowVARI},
		{func(m metrics) bool { return m.vari >= 0.2 }, goodVARI},
	},
	CategoryEXG: {
		{func(m metrics) bool { return m.exg < 20 }, lowEXG},
		{func(m metrics) bool { return m.exg > 50 }, highEXG},
	},
	CategoryGLI: {
		{func(m metrics) bool { return m.gli < 0.1 }, weakGLI},
		{func(m metrics) bool { return m.gli >= 0.1 }, strongGLI},
	},
	CategoryYield: {
		{func(m metrics) bool { return m.yield < 2 }, lowYield},
		{func(m metrics) bool { return m.yield >= 2 && m.yield < 5 }, moderateYield},
		{func(m metrics) bool { return m.yield >= 5 }, highYield},
	},
	CategoryWeed: {
		{func(m metrics) bool { return m.vari < 0.2 && m.exg > 40 }, weedPresence},
	},
	CategoryOverall: {
		{func(m metrics) bool { return goodSignals(m) >= 3 }, overallHealthy},
		{func(m metrics) bool { return goodSignals(m) < 3 }, overallAttention},
	},
}

func goodSignals(m metrics) int {
	n := 0
	for _, ok := range []bool{m.canopy > 70, m.vari > 0.2, m.exg > 40, m.stress < 10} {
		if ok {
			n++
		}
	}
	return n
}

// Evaluate runs every category in order and returns the triggered cards.
// Missing metrics count as zero. The result never aliases package state.
func Evaluate(s vegetation.Summary) []Card {
	m := fromSummary(s)
	cards := make([]Card, 0, len(Categories))
	for _, c := range Categories {
		cards = appendCategory(cards, c, m)
	}
	return cards
}

// EvaluateCategory returns only the cards one category produces.
func EvaluateCategory(c Category, s vegetation.Summary) []Card {
	return appendCategory(nil, c, fromSummary(s))
}

func appendCategory(dst []Card, c Category, m metrics) []Card {
	for _, r := range rules[c] {
		if r.when(m) {
			card := r.card
			card.Actions = slices.Clone(r.card.Actions)
			dst = append(dst, card)
		}
	}
	return dst
}
