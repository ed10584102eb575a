package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/philhumber/wineApp-sub000/internal/cost"
	"github.com/philhumber/wineApp-sub000/internal/enrich"
	"github.com/philhumber/wineApp-sub000/internal/identify"
	"github.com/philhumber/wineApp-sub000/internal/llm"
	"github.com/philhumber/wineApp-sub000/internal/resilience"
	"github.com/philhumber/wineApp-sub000/internal/store"
)

// engineEnv holds the initialized store, runtime, and pipelines needed by
// the serve/identify/enrich/cache commands.
type engineEnv struct {
	Store    store.Store
	Cache    *enrich.Cache
	Tracker  *cost.Tracker
	Runtime  *llm.Runtime
	Identify *identify.Pipeline
	Enrich   *enrich.Pipeline
}

// Close releases resources held by the engine environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine sets up the store, provider runtime, and both pipelines.
// Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	registry := llm.NewRegistry()
	registry.Register(llm.NewAnthropicProvider(cfg.Anthropic.Key))
	registry.Register(llm.NewPerplexityProvider(cfg.Perplexity.Key,
		llm.WithPerplexityBaseURL(cfg.Perplexity.BaseURL),
		llm.WithPerplexityModel(cfg.Perplexity.Model),
	))

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	if cfg.Resilience.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.Resilience.FailureThreshold
	}
	if cfg.Resilience.CooldownSecs > 0 {
		breakerCfg.Cooldown = time.Duration(cfg.Resilience.CooldownSecs) * time.Second
	}
	breakers := resilience.NewBreakers(breakerCfg)

	tracker := cost.NewTracker(0)
	calc := cost.NewCalculator(cfg.Pricing)

	rt := llm.NewRuntime(registry, breakers, tracker, calc,
		llm.WithRateLimit("anthropic", cfg.Resilience.AnthropicRPS, cfg.Resilience.RateBurst),
		llm.WithRateLimit("perplexity", cfg.Resilience.PerplexityRPS, cfg.Resilience.RateBurst),
	)

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Resilience.RetryMaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Resilience.RetryMaxAttempts
	}

	identifyPipeline := identify.NewPipeline(rt, identify.Config{
		Tiers:               cfg.Tiers(),
		EscalationThreshold: cfg.Identify.EscalationThreshold,
		CallTimeout:         cfg.IdentifyCallTimeout(),
		Retry:               retryCfg,
	})

	aliases := enrich.DefaultAliases()
	if cfg.Enrich.AliasFile != "" {
		aliases, err = enrich.LoadAliases(cfg.Enrich.AliasFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	cache := enrich.NewCache(st)
	enrichPipeline := enrich.NewPipeline(rt, cache, enrich.NewResolver(cache, aliases), enrich.Config{
		Provider:             "perplexity",
		Model:                cfg.Perplexity.Model,
		AutoAcceptConfidence: cfg.Enrich.AutoAcceptConfidence,
		CallTimeout:          cfg.EnrichCallTimeout(),
		Retry:                retryCfg,
	})

	return &engineEnv{
		Store:    st,
		Cache:    cache,
		Tracker:  tracker,
		Runtime:  rt,
		Identify: identifyPipeline,
		Enrich:   enrichPipeline,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		zap.L().Debug("using postgres store")
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		zap.L().Debug("using sqlite store", zap.String("path", cfg.Store.DatabaseURL))
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
