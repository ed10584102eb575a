package enrich

import "github.com/philhumber/wineApp-sub000/internal/wine"

// Merge overlays incoming enrichment data on prior data for the same key.
// New non-null fields win; a non-null prior field is never overwritten
// with null. Warnings are taken from the incoming payload only.
func Merge(prior, incoming wine.EnrichmentData) wine.EnrichmentData {
	out := prior

	if incoming.Producer != "" {
		out.Producer = incoming.Producer
	}
	if incoming.WineName != "" {
		out.WineName = incoming.WineName
	}
	if incoming.Vintage != "" {
		out.Vintage = incoming.Vintage
	}
	if incoming.Region != "" {
		out.Region = incoming.Region
	}
	if incoming.Country != "" {
		out.Country = incoming.Country
	}
	if incoming.WineType != "" {
		out.WineType = incoming.WineType
	}
	if len(incoming.Grapes) > 0 {
		out.Grapes = incoming.Grapes
	}
	if len(incoming.CriticScores) > 0 {
		out.CriticScores = incoming.CriticScores
	}
	if incoming.TastingNotes != "" {
		out.TastingNotes = incoming.TastingNotes
	}
	if incoming.DrinkWindow != nil {
		out.DrinkWindow = incoming.DrinkWindow
	}
	if incoming.ABV != 0 {
		out.ABV = incoming.ABV
	}
	out.Warnings = incoming.Warnings

	return out
}
