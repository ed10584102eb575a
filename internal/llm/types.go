// Package llm is the provider-abstracted client runtime: vendor adapters
// behind one interface, wrapped with circuit breaking, rate limiting, cost
// accounting, and error normalization.
package llm

import "time"

// Op names the pipeline a request belongs to, used only to pick the
// fallback error kind for non-retryable provider answers.
type Op string

const (
	OpIdentify Op = "identify"
	OpEnrich   Op = "enrich"
)

// FallbackKind returns the non-retryable taxonomy kind for the operation.
func (o Op) FallbackKind() Kind {
	if o == OpEnrich {
		return KindEnrichment
	}
	return KindIdentification
}

// Request is an immutable, per-call provider request.
type Request struct {
	// RequestID keys cost records; generated when empty.
	RequestID string

	Op     Op
	Prompt string
	System string

	// ImageData is a base64-encoded image (wine label photo) with its
	// media type, e.g. "image/jpeg". Only the Anthropic adapter supports
	// image inputs.
	ImageData      string
	ImageMediaType string

	Model       string
	MaxTokens   int64
	Temperature *float64

	// Timeout is the per-call deadline. Zero means the runtime default.
	Timeout time.Duration
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Result is the normalized outcome of a provider call. Owned by the call
// site; never shared across calls.
type Result struct {
	Text     string
	Model    string
	Provider string
	Usage    Usage
	Latency  time.Duration
	CostUSD  float64
}
