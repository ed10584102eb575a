package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/philhumber/wineApp-sub000/internal/resilience"
	"github.com/philhumber/wineApp-sub000/internal/stream"
)

// Kind is the error taxonomy crossing the engine boundary.
type Kind string

const (
	KindTimeout            Kind = "timeout"
	KindRateLimit          Kind = "rate_limit"
	KindLimitExceeded      Kind = "limit_exceeded"
	KindServerError        Kind = "server_error"
	KindOverloaded         Kind = "overloaded"
	KindCircuitOpen        Kind = "circuit_open"
	KindQualityCheckFailed Kind = "quality_check_failed"
	KindIdentification     Kind = "identification_error"
	KindEnrichment         Kind = "enrichment_error"
	KindValidation         Kind = "validation_error"
)

// userMessages maps each kind to caller-facing wording. Internals stay in
// the wrapped error chain and server logs, correlated by support ref.
var userMessages = map[Kind]string{
	KindTimeout:            "The request took too long. Please try again.",
	KindRateLimit:          "We're handling a lot of requests right now. Please try again in a moment.",
	KindLimitExceeded:      "The service quota has been exhausted. Please try again later.",
	KindServerError:        "Something went wrong on our side. Please try again.",
	KindOverloaded:         "The service is briefly overloaded. Please try again in a moment.",
	KindCircuitOpen:        "The service is recovering from an outage. Please try again shortly.",
	KindQualityCheckFailed: "We couldn't read that input. Try a clearer photo or more detail.",
	KindIdentification:     "We couldn't identify that wine. Try adding the producer or vintage.",
	KindEnrichment:         "We couldn't find details for that wine right now.",
	KindValidation:         "The wine details came back incomplete. Please try again.",
}

// ProviderError is the structured failure shape for every provider call.
// Nothing escapes the engine as an unhandled error: every failure path is
// converted into one of these (or a context cancellation).
type ProviderError struct {
	Kind       Kind
	Provider   string
	Retryable  bool
	SupportRef string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Info converts the error into its streaming payload.
func (e *ProviderError) Info() stream.ErrorInfo {
	return stream.ErrorInfo{
		Type:        string(e.Kind),
		Message:     e.Error(),
		UserMessage: userMessages[e.Kind],
		Retryable:   e.Retryable,
		SupportRef:  e.SupportRef,
	}
}

// NewProviderError builds a ProviderError with a fresh support reference.
func NewProviderError(kind Kind, provider string, retryable bool, err error) *ProviderError {
	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		Retryable:  retryable,
		SupportRef: newSupportRef(),
		Err:        err,
	}
}

// newSupportRef generates a short opaque code for log correlation.
func newSupportRef() string {
	return "WC-" + strings.ToUpper(uuid.New().String()[:8])
}

// HTTPStatusError carries a non-2xx response from a raw HTTP provider
// adapter for later classification.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Classify converts any error from a provider call into a ProviderError.
// fallback names the non-retryable kind used when the provider returned a
// well-formed but unusable answer (identification_error or
// enrichment_error, depending on the calling pipeline).
func Classify(provider string, err error, fallback Kind) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return NewProviderError(KindCircuitOpen, provider, true, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(KindTimeout, provider, true, err)
	}

	if status, ok := statusCode(err); ok {
		return classifyStatus(provider, status, err, fallback)
	}

	if resilience.IsTransient(err) {
		return NewProviderError(KindServerError, provider, true, err)
	}

	return NewProviderError(fallback, provider, false, err)
}

func classifyStatus(provider string, status int, err error, fallback Kind) *ProviderError {
	switch {
	case status == 408:
		return NewProviderError(KindTimeout, provider, true, err)
	case status == 429:
		return NewProviderError(KindRateLimit, provider, true, err)
	case status == 529:
		return NewProviderError(KindOverloaded, provider, true, err)
	case status == 402:
		return NewProviderError(KindLimitExceeded, provider, false, err)
	case status >= 500:
		return NewProviderError(KindServerError, provider, true, err)
	default:
		return NewProviderError(fallback, provider, false, err)
	}
}

// statusCode digs an HTTP status out of the error chain, from either the
// Anthropic SDK error, a raw-HTTP adapter error, or a transient wrapper.
func statusCode(err error) (int, bool) {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode, true
	}
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.StatusCode, true
	}
	var te *resilience.TransientError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return te.StatusCode, true
	}
	return 0, false
}
