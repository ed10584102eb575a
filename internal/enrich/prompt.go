package enrich

import (
	"fmt"
	"strings"
)

const systemText = `You are a wine researcher with access to current web sources. Research the requested wine and respond with a single JSON object only. No markdown, no commentary. Use null for anything you cannot verify; never invent scores or facts.`

const promptTemplate = `Research this wine using current, reputable sources (producer sites, major critics, established retailers):

%s

Return exactly this JSON structure:
{
  "producer": "full producer name",
  "wine_name": "wine name without producer or vintage",
  "vintage": "vintage year, or null for non-vintage",
  "region": "appellation or region",
  "country": "country",
  "wine_type": "red|white|rose|sparkling|dessert|fortified",
  "grapes": [{"variety": "grape variety", "percent": 0}],
  "critic_scores": [{"critic": "critic or publication", "score": 0, "note": "short note"}],
  "tasting_notes": "2-3 sentence tasting profile",
  "drink_window": {"from": 0, "to": 0},
  "abv": 0.0
}

Scores are on the 100-point scale. Blend percentages sum to at most 100; omit percent when unknown. Use null for unknown fields, not empty strings.`

func buildPrompt(producer, wineName, vintage string) string {
	parts := make([]string, 0, 3)
	if producer != "" {
		parts = append(parts, "Producer: "+producer)
	}
	if wineName != "" {
		parts = append(parts, "Wine: "+wineName)
	}
	if vintage != "" {
		parts = append(parts, "Vintage: "+vintage)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n"))
}
