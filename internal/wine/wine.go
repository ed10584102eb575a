// Package wine defines the domain model shared by the identification and
// enrichment pipelines.
package wine

import "strings"

// ParsedWine is the structured identity of a wine as extracted from
// unstructured text or a label image.
type ParsedWine struct {
	Producer string   `json:"producer,omitempty"`
	WineName string   `json:"wine_name,omitempty"`
	Vintage  string   `json:"vintage,omitempty"`
	Region   string   `json:"region,omitempty"`
	WineType string   `json:"wine_type,omitempty"`
	Grapes   []string `json:"grapes,omitempty"`
}

// IsEmpty reports whether no identifying field was extracted at all.
func (w ParsedWine) IsEmpty() bool {
	return w.Producer == "" && w.WineName == "" && w.Vintage == "" &&
		w.Region == "" && w.WineType == "" && len(w.Grapes) == 0
}

// DisplayName renders a human-readable "Producer WineName Vintage" label.
func (w ParsedWine) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{w.Producer, w.WineName, w.Vintage} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// GrapeComponent is a single variety in a blend with its share of the blend.
type GrapeComponent struct {
	Variety string  `json:"variety"`
	Percent float64 `json:"percent,omitempty"`
}

// CriticScore is a single critic's rating on the 100-point scale.
type CriticScore struct {
	Critic string  `json:"critic"`
	Score  float64 `json:"score"`
	Note   string  `json:"note,omitempty"`
}

// DrinkWindow is the recommended drinking window in calendar years.
type DrinkWindow struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// EnrichmentData is the structured knowledge attached to an identified wine:
// grape composition, critic scores, tasting notes and drink window.
type EnrichmentData struct {
	Producer     string           `json:"producer"`
	WineName     string           `json:"wine_name"`
	Vintage      string           `json:"vintage,omitempty"`
	Region       string           `json:"region,omitempty"`
	Country      string           `json:"country,omitempty"`
	WineType     string           `json:"wine_type,omitempty"`
	Grapes       []GrapeComponent `json:"grapes,omitempty"`
	CriticScores []CriticScore    `json:"critic_scores,omitempty"`
	TastingNotes string           `json:"tasting_notes,omitempty"`
	DrinkWindow  *DrinkWindow     `json:"drink_window,omitempty"`
	ABV          float64          `json:"abv,omitempty"`

	// Warnings carries validation fallback notes; never persisted as data,
	// only attached to the outgoing payload.
	Warnings []string `json:"warnings,omitempty"`
}
