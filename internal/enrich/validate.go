package enrich

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/philhumber/wineApp-sub000/internal/wine"
)

// Validate checks a terminal enrichment payload against the schema. Field
// failures are repaired in place (the invalid sub-field is nulled and a
// warning attached) rather than discarding the whole result. An error is
// returned only when the fallback itself cannot produce a usable payload
// (both identity fields missing).
func Validate(data wine.EnrichmentData) (wine.EnrichmentData, []string, error) {
	if data.Producer == "" && data.WineName == "" {
		return data, nil, eris.New("enrich: payload has neither producer nor wine name")
	}

	var warnings []string
	if data.Producer == "" {
		warnings = append(warnings, "producer missing from enrichment result")
	}
	if data.WineName == "" {
		warnings = append(warnings, "wine name missing from enrichment result")
	}

	kept := data.CriticScores[:0:0]
	for _, cs := range data.CriticScores {
		if cs.Score < 0 || cs.Score > 100 {
			warnings = append(warnings, fmt.Sprintf("dropped out-of-range critic score %.0f from %s", cs.Score, cs.Critic))
			continue
		}
		kept = append(kept, cs)
	}
	data.CriticScores = kept

	grapes := data.Grapes[:0:0]
	for _, g := range data.Grapes {
		if g.Variety == "" {
			warnings = append(warnings, "dropped grape component without variety")
			continue
		}
		if g.Percent < 0 || g.Percent > 100 {
			warnings = append(warnings, fmt.Sprintf("cleared invalid blend percent for %s", g.Variety))
			g.Percent = 0
		}
		grapes = append(grapes, g)
	}
	data.Grapes = grapes

	if dw := data.DrinkWindow; dw != nil && dw.To < dw.From {
		warnings = append(warnings, fmt.Sprintf("dropped inverted drink window %d-%d", dw.From, dw.To))
		data.DrinkWindow = nil
	}

	if data.ABV < 0 || data.ABV > 25 {
		if data.ABV != 0 {
			warnings = append(warnings, fmt.Sprintf("cleared implausible abv %.1f", data.ABV))
		}
		data.ABV = 0
	}

	return data, warnings, nil
}
