// Package cost provides pricing rates, a cost calculator, and a process-wide
// usage tracker for LLM provider calls.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityRate holds Perplexity pricing: token rates plus a flat per-query
// surcharge for web-search grounding.
type PerplexityRate struct {
	Input    float64 `yaml:"input" mapstructure:"input"`
	Output   float64 `yaml:"output" mapstructure:"output"`
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes estimated USD costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Anthropic computes the cost of a Claude call. Unknown models cost 0.
func (c *Calculator) Anthropic(model string, inputTokens, outputTokens int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
}

// Perplexity computes the cost of a web-search-grounded query.
func (c *Calculator) Perplexity(inputTokens, outputTokens int64) float64 {
	r := c.rates.Perplexity
	return r.PerQuery + (float64(inputTokens)/1e6)*r.Input + (float64(outputTokens)/1e6)*r.Output
}

// Cost dispatches to the provider-specific calculation by provider id.
// Unknown providers cost 0.
func (c *Calculator) Cost(provider, model string, inputTokens, outputTokens int64) float64 {
	switch provider {
	case "anthropic":
		return c.Anthropic(model, inputTokens, outputTokens)
	case "perplexity":
		return c.Perplexity(inputTokens, outputTokens)
	default:
		return 0
	}
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		Perplexity: PerplexityRate{Input: 3.00, Output: 15.00, PerQuery: 0.005},
	}
}
