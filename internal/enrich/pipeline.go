package enrich

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
	"github.com/philhumber/wineApp-sub000/internal/wine"
)

// Runtime is the slice of the client runtime this pipeline consumes.
type Runtime interface {
	Call(ctx context.Context, providerID string, req llm.Request) (*llm.Result, error)
	CallStreaming(ctx context.Context, providerID string, req llm.Request, onDelta func(string)) (*llm.Result, error)
}

// Config controls the enrichment pipeline.
type Config struct {
	// Provider and Model route the web-search-grounded research call.
	Provider string
	Model    string

	// AutoAcceptConfidence is the resolver confidence at or above which a
	// cache match is served without confirmation. Default 0.9.
	AutoAcceptConfidence float64

	// CallTimeout is the per-call deadline passed to the runtime.
	CallTimeout time.Duration

	// Retry controls the bounded retry for retryable provider errors.
	Retry resilience.RetryConfig
}

// Request is one enrichment request. The confirmation handshake is
// stateless: a follow-up call carries the same wine plus ConfirmMatch or
// ForceRefresh, and the resolver re-derives the same match.
type Request struct {
	Producer string `json:"producer"`
	WineName string `json:"wine_name"`
	Vintage  string `json:"vintage,omitempty"`

	// ConfirmMatch accepts the below-threshold match offered by a prior
	// confirmation_required answer.
	ConfirmMatch bool `json:"confirm_match,omitempty"`

	// ForceRefresh bypasses the cache and always researches live.
	ForceRefresh bool `json:"force_refresh,omitempty"`

	RequestID string `json:"-"`
}

// Outcome is the result of one enrichment call. Exactly one of Data or
// Confirmation is meaningful: a pending confirmation carries no data.
type Outcome struct {
	Data         wine.EnrichmentData         `json:"data"`
	Source       string                      `json:"source"`
	Confirmation *stream.ConfirmationPayload `json:"confirmation,omitempty"`
}

const (
	SourceCache     = "cache"
	SourceWebSearch = "web_search"
)

// Pipeline orchestrates cache resolution, the confirmation handshake, and
// the live research call with incremental field delivery.
type Pipeline struct {
	rt       Runtime
	cache    *Cache
	resolver *Resolver
	cfg      Config
}

// NewPipeline creates the enrichment pipeline.
func NewPipeline(rt Runtime, cache *Cache, resolver *Resolver, cfg Config) *Pipeline {
	if cfg.AutoAcceptConfidence <= 0 {
		cfg.AutoAcceptConfidence = 0.9
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	return &Pipeline{rt: rt, cache: cache, resolver: resolver, cfg: cfg}
}

// Enrich runs the pipeline and returns the final outcome.
func (p *Pipeline) Enrich(ctx context.Context, req Request) (*Outcome, error) {
	return p.run(ctx, req, nil)
}

// EnrichStream runs the pipeline, emitting field/confirmation_required/
// result/done events in order. Field events for live research are emitted
// as the provider streams them; cache hits replay fields from the entry.
func (p *Pipeline) EnrichStream(ctx context.Context, req Request, emit func(stream.Event)) (*Outcome, error) {
	out, err := p.run(ctx, req, emit)
	if err != nil {
		emitErrorEvent(ctx, emit, err)
		return nil, err
	}

	if out.Confirmation != nil {
		emit(stream.ConfirmationEvent(*out.Confirmation))
		emit(stream.DoneEvent())
		return out, nil
	}

	if payload, merr := json.Marshal(out); merr == nil {
		emit(stream.ResultEvent(payload))
	}
	emit(stream.DoneEvent())
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, emit func(stream.Event)) (*Outcome, error) {
	if req.Producer == "" && req.WineName == "" {
		return nil, llm.NewProviderError(llm.KindValidation, p.cfg.Provider, false,
			eris.New("enrich: request has neither producer nor wine name"))
	}

	if !req.ForceRefresh {
		match, err := p.resolver.Resolve(ctx, req.Producer, req.WineName, req.Vintage)
		if err != nil {
			return nil, err
		}
		if match != nil {
			if match.Confidence >= p.cfg.AutoAcceptConfidence || req.ConfirmMatch {
				if emit != nil {
					emitDataFields(emit, match.Entry.Data)
				}
				return &Outcome{Data: match.Entry.Data, Source: SourceCache}, nil
			}
			// Below threshold and not yet confirmed: hand the match back
			// for confirmation instead of guessing.
			return &Outcome{
				Source: SourceCache,
				Confirmation: &stream.ConfirmationPayload{
					MatchType:   string(match.Type),
					SearchedFor: ExpandedKey(req.Producer, req.WineName, req.Vintage),
					MatchedTo:   match.Key,
					Confidence:  match.Confidence,
				},
			}, nil
		}
	}

	return p.research(ctx, req, emit)
}

// research performs the live web-search-grounded call, validates and merges
// the payload, and writes the cache entry. Nothing is cached on error or
// cancellation.
func (p *Pipeline) research(ctx context.Context, req Request, emit func(stream.Event)) (*Outcome, error) {
	llmReq := llm.Request{
		RequestID: req.RequestID,
		Op:        llm.OpEnrich,
		Prompt:    buildPrompt(req.Producer, req.WineName, req.Vintage),
		System:    systemText,
		Model:     p.cfg.Model,
		Timeout:   p.cfg.CallTimeout,
	}

	retryCfg := p.cfg.Retry
	retryCfg.ShouldRetry = retryableProviderError
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger(p.cfg.Provider, "enrich")
	}

	var scanner *fieldScanner
	if emit != nil {
		scanner = newFieldScanner(func(name string, value json.RawMessage) {
			emit(stream.FieldEvent(name, value))
		})
	}

	callRes, err := resilience.DoVal(ctx, retryCfg, func(c context.Context) (*llm.Result, error) {
		if scanner == nil {
			return p.rt.Call(c, p.cfg.Provider, llmReq)
		}
		// A retried attempt restarts the response; the emitted set carries
		// over so downstream consumers see each field once.
		scanner.reset()
		return p.rt.CallStreaming(c, p.cfg.Provider, llmReq, scanner.feed)
	})
	if err != nil {
		return nil, err
	}

	data, perr := parseEnrichment(callRes.Text)
	if perr != nil {
		return nil, llm.NewProviderError(llm.KindEnrichment, p.cfg.Provider, false, perr)
	}

	data, warnings, verr := Validate(data)
	if verr != nil {
		return nil, llm.NewProviderError(llm.KindValidation, p.cfg.Provider, false, verr)
	}
	data.Warnings = warnings

	key := ExpandedKey(req.Producer, req.WineName, req.Vintage)
	if prior, gerr := p.cache.Get(ctx, key); gerr == nil && prior != nil {
		data = Merge(prior.Data, data)
	} else if gerr != nil {
		zap.L().Warn("cache read before merge failed", zap.String("key", key), zap.Error(gerr))
	}

	// A cancelled request must leave no trace in the cache.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	entry := &CacheEntry{
		Key:        key,
		Data:       data,
		MatchType:  MatchExact,
		Confidence: 1.0,
		WrittenAt:  time.Now().UTC(),
	}
	if werr := p.cache.Put(ctx, entry); werr != nil {
		zap.L().Warn("cache write failed", zap.String("key", key), zap.Error(werr))
	}

	zap.L().Info("enrichment researched",
		zap.String("request_id", req.RequestID),
		zap.String("key", key),
		zap.Int("warnings", len(warnings)),
		zap.Float64("cost_usd", callRes.CostUSD),
	)
	return &Outcome{Data: data, Source: SourceWebSearch}, nil
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

// emitDataFields replays a cached payload as field events.
func emitDataFields(emit func(stream.Event), data wine.EnrichmentData) {
	fields := []struct {
		name  string
		value any
		skip  bool
	}{
		{"producer", data.Producer, data.Producer == ""},
		{"wine_name", data.WineName, data.WineName == ""},
		{"vintage", data.Vintage, data.Vintage == ""},
		{"region", data.Region, data.Region == ""},
		{"country", data.Country, data.Country == ""},
		{"wine_type", data.WineType, data.WineType == ""},
		{"grapes", data.Grapes, len(data.Grapes) == 0},
		{"critic_scores", data.CriticScores, len(data.CriticScores) == 0},
		{"tasting_notes", data.TastingNotes, data.TastingNotes == ""},
		{"drink_window", data.DrinkWindow, data.DrinkWindow == nil},
		{"abv", data.ABV, data.ABV == 0},
	}
	for _, f := range fields {
		if f.skip {
			continue
		}
		if raw, err := json.Marshal(f.value); err == nil {
			emit(stream.FieldEvent(f.name, raw))
		}
	}
}
