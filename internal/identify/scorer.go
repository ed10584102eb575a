// Package identify implements the confidence-driven, tier-escalating wine
// identification pipeline.
package identify

import (
	"sort"

	"github.com/philhumber/wineApp-sub000/internal/llm"
	"github.com/philhumber/wineApp-sub000/internal/wine"
)

// Per-field completeness weights. Producer and wine name carry the bulk;
// vintage completes the identity.
const (
	weightProducer = 0.4
	weightWineName = 0.4
	weightVintage  = 0.2
)

// NormalizeConfidence maps a provider-reported percentage in [0,100] to
// [0,1], clamping out-of-range values.
func NormalizeConfidence(p float64) float64 {
	c := p / 100
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Completeness scores required-field presence, clamped to [0,1].
func Completeness(w wine.ParsedWine) float64 {
	var score float64
	if w.Producer != "" {
		score += weightProducer
	}
	if w.WineName != "" {
		score += weightWineName
	}
	if w.Vintage != "" {
		score += weightVintage
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Candidate is one possible identification, with normalized confidence.
type Candidate struct {
	Wine       wine.ParsedWine `json:"wine"`
	Confidence float64         `json:"confidence"`
}

// Result is a single tier's identification outcome. Immutable once
// returned; escalation produces a new Result rather than mutating this one.
type Result struct {
	Wine         wine.ParsedWine `json:"wine"`
	Confidence   float64         `json:"confidence"`
	Completeness float64         `json:"completeness"`
	TierUsed     int             `json:"tier_used"`
	Candidates   []Candidate     `json:"candidates,omitempty"`
	Usage        llm.Usage       `json:"usage"`
	CostUSD      float64         `json:"cost_usd"`
}

// RankCandidates orders candidates by confidence descending; exact ties
// prefer higher completeness; remaining ties preserve provider order.
func RankCandidates(cands []Candidate) []Candidate {
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return Completeness(ranked[i].Wine) > Completeness(ranked[j].Wine)
	})
	return ranked
}
