package identify

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/philhumber/wineApp-sub000/internal/wine"
)

// flexString tolerates providers returning numbers where the schema asks
// for strings (vintage years in particular).
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
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
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// providerPayload is the JSON shape the identification prompt asks for.
// Confidence is the provider-reported percentage on a 0-100 scale.
type providerPayload struct {
	Producer   flexString        `json:"producer"`
	WineName   flexString        `json:"wine_name"`
	Vintage    flexString        `json:"vintage"`
	Region     flexString        `json:"region"`
	WineType   flexString        `json:"wine_type"`
	Grapes     []string          `json:"grapes"`
	Confidence float64           `json:"confidence"`
	Candidates []providerPayload `json:"candidates"`
}

func (pp providerPayload) toWine() wine.ParsedWine {
	return wine.ParsedWine{
		Producer: string(pp.Producer),
		WineName: string(pp.WineName),
		Vintage:  string(pp.Vintage),
		Region:   string(pp.Region),
		WineType: string(pp.WineType),
		Grapes:   pp.Grapes,
	}
}

// parsePayload decodes the provider's response text, tolerating markdown
// code fences and prose wrapping around the JSON object.
func parsePayload(text string) (*providerPayload, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("identify: no JSON object in response")
	}
	var pp providerPayload
	if err := json.Unmarshal([]byte(cleaned), &pp); err != nil {
		return nil, eris.Wrap(err, "identify: unmarshal response")
	}
	return &pp, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
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
