package llm

import (
	"context"
	"sort"
	"sync"
)

// Provider is the capability interface each LLM vendor adapter implements.
// Adapters translate the generic Request into a vendor call and normalize
// the response; they do no retrying, breaking, or cost accounting of their
// own; that is the Runtime's job.
type Provider interface {
	// Name returns the provider id ("anthropic", "perplexity").
	Name() string
	// Call performs a blocking completion.
	Call(ctx context.Context, req Request) (*Result, error)
	// CallStreaming performs a streamed completion, invoking onDelta with
	// each incremental text fragment in arrival order, then returning the
	// accumulated result.
	CallStreaming(ctx context.Context, req Request, onDelta func(text string)) (*Result, error)
}

// Registry is a fixed set of concrete providers selected by id. Populated
// once at startup; no runtime reflection.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by id, or nil if not registered.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns the registered provider ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TierRoute maps an identification tier to a provider+model combination.
type TierRoute struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	Model    string `yaml:"model" mapstructure:"model"`
}

// TierMap orders tiers cheapest-to-strongest, 1-based.
type TierMap map[int]TierRoute

// MaxTier returns the highest configured tier.
func (m TierMap) MaxTier() int {
	max := 0
	for t := range m {
		if t > max {
			max = t
		}
	}
	return max
}
