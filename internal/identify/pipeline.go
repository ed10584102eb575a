package identify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/philhumber/wineApp-sub000/internal/llm"
	"github.com/philhumber/wineApp-sub000/internal/resilience"
	"github.com/philhumber/wineApp-sub000/internal/stream"
)

// Caller is the slice of the client runtime this pipeline consumes.
type Caller interface {
	Call(ctx context.Context, providerID string, req llm.Request) (*llm.Result, error)
}

// Config controls tier routing and escalation.
type Config struct {
	// Tiers maps tier number (1-based, cheapest first) to provider+model.
	Tiers llm.TierMap

	// EscalationThreshold is the normalized confidence below which one
	// automatic escalation is attempted. Default 0.6.
	EscalationThreshold float64

	// CallTimeout is the per-call deadline passed to the runtime.
	CallTimeout time.Duration

	// Retry controls the bounded same-tier retry for retryable errors.
	Retry resilience.RetryConfig
}

// Input is one identification request. Image inputs carry base64 data; the
// sharpness/framing pre-check is an external collaborator that may set
// Tier to start higher.
type Input struct {
	Text           string
	ImageData      string
	ImageMediaType string

	// Tier selects the starting tier; 0 means tier 1.
	Tier int

	// ForceTopTier is the user-triggered override jumping straight to the
	// strongest tier.
	ForceTopTier bool

	RequestID string
}

// Pipeline orchestrates tier selection, invocation, scoring, and bounded
// escalation. Worst case per request: one retry per tier, one automatic
// escalation, so at most 4 provider calls, typically 1.
type Pipeline struct {
	rt  Caller
	cfg Config
}

// NewPipeline creates the identification pipeline.
func NewPipeline(rt Caller, cfg Config) *Pipeline {
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = 0.6
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	return &Pipeline{rt: rt, cfg: cfg}
}

// Identify runs the escalation pipeline and returns the final result.
func (p *Pipeline) Identify(ctx context.Context, in Input) (*Result, error) {
	return p.run(ctx, in, nil)
}

// IdentifyStream runs the pipeline, emitting escalating/field/result/done
// events to emit in order. The returned Result matches the result event.
func (p *Pipeline) IdentifyStream(ctx context.Context, in Input, emit func(stream.Event)) (*Result, error) {
	res, err := p.run(ctx, in, emit)
	if err != nil {
		emitErrorEvent(ctx, emit, err)
		return nil, err
	}

	emitWineFields(emit, res)
	if payload, merr := json.Marshal(res); merr == nil {
		emit(stream.ResultEvent(payload))
	}
	emit(stream.DoneEvent())
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, in Input, emit func(stream.Event)) (*Result, error) {
	maxTier := p.cfg.Tiers.MaxTier()
	if maxTier == 0 {
		return nil, eris.New("identify: no tiers configured")
	}

	tier := in.Tier
	if in.ForceTopTier {
		tier = maxTier
	}
	if tier < 1 {
		tier = 1
	}
	if tier > maxTier {
		tier = maxTier
	}

	result, err := p.attempt(ctx, tier, in)
	if err != nil {
		return nil, err
	}

	// One automatic escalation, at most, and never past the top tier.
	// Further escalation is user-triggered only.
	if result.Confidence < p.cfg.EscalationThreshold && tier < maxTier && !in.ForceTopTier {
		next := tier + 1
		zap.L().Info("auto-escalating identification",
			zap.String("request_id", in.RequestID),
			zap.Int("from_tier", tier),
			zap.Int("to_tier", next),
			zap.Float64("confidence", result.Confidence),
		)
		if emit != nil {
			emit(stream.EscalatingEvent(tier, next, "low confidence"))
		}

		escalated, eerr := p.attempt(ctx, next, in)
		if eerr != nil {
			if ctx.Err() != nil {
				return nil, eerr
			}
			// The lower tier already produced a usable answer; keep it
			// rather than failing the whole request on the escalation.
			zap.L().Warn("escalation attempt failed, keeping prior tier result",
				zap.String("request_id", in.RequestID),
				zap.Int("tier", next),
				zap.Error(eerr),
			)
			return result, nil
		}
		// Last-tried tier wins, even when its confidence is lower.
		result = escalated
	}

	// A call that completes just as the caller cancels returns nothing.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return result, nil
}

// attempt invokes one tier, retrying once at the same tier on a retryable
// provider error before giving up.
func (p *Pipeline) attempt(ctx context.Context, tier int, in Input) (*Result, error) {
	route, ok := p.cfg.Tiers[tier]
	if !ok {
		return nil, eris.Errorf("identify: tier %d not configured", tier)
	}

	req := llm.Request{
		RequestID:      in.RequestID,
		Op:             llm.OpIdentify,
		Prompt:         buildPrompt(in),
		System:         systemText,
		ImageData:      in.ImageData,
		ImageMediaType: in.ImageMediaType,
		Model:          route.Model,
		Timeout:        p.cfg.CallTimeout,
	}

	retryCfg := p.cfg.Retry
	retryCfg.ShouldRetry = retryableProviderError
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger(route.Provider, "identify")
	}

	callRes, err := resilience.DoVal(ctx, retryCfg, func(c context.Context) (*llm.Result, error) {
		return p.rt.Call(c, route.Provider, req)
	})
	if err != nil {
		return nil, err
	}

	payload, perr := parsePayload(callRes.Text)
	if perr != nil {
		return nil, llm.NewProviderError(llm.KindIdentification, route.Provider, false, perr)
	}

	candidates := make([]Candidate, 0, len(payload.Candidates))
	for _, c := range payload.Candidates {
		candidates = append(candidates, Candidate{
			Wine:       c.toWine(),
			Confidence: NormalizeConfidence(c.Confidence),
		})
	}

	parsed := payload.toWine()
	return &Result{
		Wine:         parsed,
		Confidence:   NormalizeConfidence(payload.Confidence),
		Completeness: Completeness(parsed),
		TierUsed:     tier,
		Candidates:   RankCandidates(candidates),
		Usage:        callRes.Usage,
		CostUSD:      callRes.CostUSD,
	}, nil
}

func retryableProviderError(err error) bool {
	pe := asProviderError(err)
	return pe != nil && pe.Retryable
}

func asProviderError(err error) *llm.ProviderError {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

// emitErrorEvent converts any failure into a structured error event before
// it crosses the stream boundary. Cancellations emit nothing; the consumer
// is already gone.
func emitErrorEvent(ctx context.Context, emit func(stream.Event), err error) {
	if ctx.Err() != nil {
		return
	}
	if pe := asProviderError(err); pe != nil {
		emit(stream.ErrorEvent(pe.Info()))
		return
	}
	emit(stream.ErrorEvent(stream.ErrorInfo{
		Type:        string(llm.KindServerError),
		Message:     err.Error(),
		UserMessage: "Something went wrong. Please try again.",
	}))
}

func emitWineFields(emit func(stream.Event), res *Result) {
	fields := []struct {
		name  string
		value any
	}{
		{"producer", res.Wine.Producer},
		{"wine_name", res.Wine.WineName},
		{"vintage", res.Wine.Vintage},
		{"region", res.Wine.Region},
		{"wine_type", res.Wine.WineType},
	}
	for _, f := range fields {
		if s, ok := f.value.(string); ok && s == "" {
			continue
		}
		if raw, err := json.Marshal(f.value); err == nil {
			emit(stream.FieldEvent(f.name, raw))
		}
	}
	if len(res.Wine.Grapes) > 0 {
		if raw, err := json.Marshal(res.Wine.Grapes); err == nil {
			emit(stream.FieldEvent("grapes", raw))
		}
	}
}
