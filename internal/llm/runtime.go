package llm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/philhumber/wineApp-sub000/internal/cost"
	"github.com/philhumber/wineApp-sub000/internal/resilience"
)

const defaultCallTimeout = 90 * time.Second

// Runtime composes the provider registry with per-provider circuit breakers,
// rate limiters, and cost accounting behind one call surface. One instance
// per process; breakers and the cost tracker are its only shared mutable
// state, both safe for concurrent use.
type Runtime struct {
	registry *Registry
	breakers *resilience.Breakers
	limiters map[string]*rate.Limiter
	tracker  *cost.Tracker
	calc     *cost.Calculator
	timeout  time.Duration
}

// RuntimeOption configures the Runtime.
type RuntimeOption func(*Runtime)

// WithCallTimeout sets the default per-call deadline.
func WithCallTimeout(d time.Duration) RuntimeOption {
	return func(rt *Runtime) { rt.timeout = d }
}

// WithRateLimit installs a client-side rate limiter for a provider, applied
// before the circuit breaker. A non-positive rps disables limiting for the
// provider; a zero-rate limiter would block every call forever.
func WithRateLimit(provider string, rps float64, burst int) RuntimeOption {
	return func(rt *Runtime) {
		if rps <= 0 {
			return
		}
		rt.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewRuntime creates the client runtime.
func NewRuntime(registry *Registry, breakers *resilience.Breakers, tracker *cost.Tracker, calc *cost.Calculator, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		registry: registry,
		breakers: breakers,
		limiters: make(map[string]*rate.Limiter),
		tracker:  tracker,
		calc:     calc,
		timeout:  defaultCallTimeout,
	}
	for _, o := range opts {
		o(rt)
	}
	return rt
}

// Breakers exposes the breaker registry for observability endpoints.
func (rt *Runtime) Breakers() *resilience.Breakers { return rt.breakers }

// Call invokes the named provider once. Every failure is returned as a
// *ProviderError, except context cancellation which propagates as-is so
// pipelines can stop without emitting further side effects.
func (rt *Runtime) Call(ctx context.Context, providerID string, req Request) (*Result, error) {
	return rt.invoke(ctx, providerID, req, func(ctx context.Context, p Provider, req Request) (*Result, error) {
		return p.Call(ctx, req)
	})
}

// CallStreaming is Call with incremental text delivery.
func (rt *Runtime) CallStreaming(ctx context.Context, providerID string, req Request, onDelta func(string)) (*Result, error) {
	return rt.invoke(ctx, providerID, req, func(ctx context.Context, p Provider, req Request) (*Result, error) {
		return p.CallStreaming(ctx, req, onDelta)
	})
}

func (rt *Runtime) invoke(ctx context.Context, providerID string, req Request, do func(context.Context, Provider, Request) (*Result, error)) (*Result, error) {
	provider := rt.registry.Get(providerID)
	if provider == nil {
		return nil, NewProviderError(KindServerError, providerID, false,
			errors.New("provider not registered"))
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	if lim := rt.limiters[providerID]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = rt.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := resilience.ExecuteVal(callCtx, rt.breakers.Get(providerID), func(c context.Context) (*Result, error) {
		return do(c, provider, req)
	})
	latency := time.Since(start)

	// Circuit-open rejections never reached the network; cancelled calls
	// accrue nothing further. Everything else is tracked, success or not.
	shortCircuited := errors.Is(err, resilience.ErrCircuitOpen)
	cancelled := ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled)
	if !shortCircuited && !cancelled {
		var usage Usage
		model := req.Model
		if res != nil {
			usage = res.Usage
			if res.Model != "" {
				model = res.Model
			}
		}
		rt.tracker.Track(cost.Record{
			RequestID:    req.RequestID,
			Provider:     providerID,
			Model:        model,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			CostUSD:      rt.calc.Cost(providerID, model, usage.InputTokens, usage.OutputTokens),
			LatencyMs:    latency.Milliseconds(),
			Success:      err == nil,
		})
	}

	if err != nil {
		if cancelled {
			return nil, ctx.Err()
		}
		pe := Classify(providerID, err, req.Op.FallbackKind())
		zap.L().Warn("provider call failed",
			zap.String("request_id", req.RequestID),
			zap.String("provider", providerID),
			zap.String("model", req.Model),
			zap.String("kind", string(pe.Kind)),
			zap.Bool("retryable", pe.Retryable),
			zap.String("support_ref", pe.SupportRef),
			zap.Error(err),
		)
		return nil, pe
	}

	res.Provider = providerID
	res.Latency = latency
	res.CostUSD = rt.calc.Cost(providerID, res.Model, res.Usage.InputTokens, res.Usage.OutputTokens)
	return res, nil
}
