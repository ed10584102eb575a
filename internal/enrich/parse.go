package enrich

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/philhumber/wineApp-sub000/internal/wine"
)

// flexVintage tolerates providers returning the vintage as a bare number.
type flexVintage string

func (f *flexVintage) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexVintage(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexVintage(n.String())
	return nil
}

// enrichPayload is the JSON shape the enrichment prompt asks for.
type enrichPayload struct {
	Producer     string                `json:"producer"`
	WineName     string                `json:"wine_name"`
	Vintage      flexVintage           `json:"vintage"`
	Region       string                `json:"region"`
	Country      string                `json:"country"`
	WineType     string                `json:"wine_type"`
	Grapes       []wine.GrapeComponent `json:"grapes"`
	CriticScores []wine.CriticScore    `json:"critic_scores"`
	TastingNotes string                `json:"tasting_notes"`
	DrinkWindow  *wine.DrinkWindow     `json:"drink_window"`
	ABV          float64               `json:"abv"`
}

func (ep enrichPayload) toData() wine.EnrichmentData {
	return wine.EnrichmentData{
		Producer:     ep.Producer,
		WineName:     ep.WineName,
		Vintage:      string(ep.Vintage),
		Region:       ep.Region,
		Country:      ep.Country,
		WineType:     ep.WineType,
		Grapes:       ep.Grapes,
		CriticScores: ep.CriticScores,
		TastingNotes: ep.TastingNotes,
		DrinkWindow:  ep.DrinkWindow,
		ABV:          ep.ABV,
	}
}

// parseEnrichment decodes the provider's terminal response text, tolerating
// markdown code fences and prose wrapping around the JSON object.
func parseEnrichment(text string) (wine.EnrichmentData, error) {
	cleaned := extractJSON(text)
	if cleaned == "" {
		return wine.EnrichmentData{}, eris.New("enrich: no JSON object in response")
	}
	var ep enrichPayload
	if err := json.Unmarshal([]byte(cleaned), &ep); err != nil {
		return wine.EnrichmentData{}, eris.Wrap(err, "enrich: unmarshal response")
	}
	return ep.toData(), nil
}

func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
