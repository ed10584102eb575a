package cost

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is one completed provider call's usage and estimated cost. Records
// are written for every call that reached the provider, successful or not.
type Record struct {
	RequestID    string    `json:"request_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	LatencyMs    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	At           time.Time `json:"at"`
}

// ProviderTotals aggregates usage per provider.
type ProviderTotals struct {
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Tracker is a process-wide, in-memory ledger of provider usage. It exists
// for budget observability only and never influences control flow.
// Initialized once at startup, reset on process restart.
type Tracker struct {
	mu      sync.Mutex
	records []Record
	totals  map[string]*ProviderTotals
	maxKeep int
}

// NewTracker creates a Tracker that retains at most maxKeep individual
// records (totals are kept regardless). maxKeep <= 0 means 1000.
func NewTracker(maxKeep int) *Tracker {
	if maxKeep <= 0 {
		maxKeep = 1000
	}
	return &Tracker{
		totals:  make(map[string]*ProviderTotals),
		maxKeep: maxKeep,
	}
}

// Track appends a record and updates the per-provider totals.
func (t *Tracker) Track(rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	t.mu.Lock()
	tot, ok := t.totals[rec.Provider]
	if !ok {
		tot = &ProviderTotals{}
		t.totals[rec.Provider] = tot
	}
	tot.Calls++
	if !rec.Success {
		tot.Failures++
	}
	tot.InputTokens += rec.InputTokens
	tot.OutputTokens += rec.OutputTokens
	tot.CostUSD += rec.CostUSD

	t.records = append(t.records, rec)
	if len(t.records) > t.maxKeep {
		t.records = t.records[len(t.records)-t.maxKeep:]
	}
	t.mu.Unlock()

	zap.L().Debug("cost attribution",
		zap.String("request_id", rec.RequestID),
		zap.String("provider", rec.Provider),
		zap.String("model", rec.Model),
		zap.Int64("input_tokens", rec.InputTokens),
		zap.Int64("output_tokens", rec.OutputTokens),
		zap.Float64("cost_usd", rec.CostUSD),
		zap.Bool("success", rec.Success),
	)
}

// Summary returns a snapshot of per-provider totals.
func (t *Tracker) Summary() map[string]ProviderTotals {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ProviderTotals, len(t.totals))
	for name, tot := range t.totals {
		out[name] = *tot
	}
	return out
}

// Recent returns up to n most recent records, newest last.
func (t *Tracker) Recent(n int) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.records) {
		n = len(t.records)
	}
	out := make([]Record, n)
	copy(out, t.records[len(t.records)-n:])
	return out
}
