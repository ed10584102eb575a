package cost

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AggregatesPerProvider(t *testing.T) {
	tr := NewTracker(10)

	tr.Track(Record{RequestID: "r1", Provider: "anthropic", InputTokens: 100, OutputTokens: 50, CostUSD: 0.01, Success: true})
	tr.Track(Record{RequestID: "r2", Provider: "anthropic", InputTokens: 200, OutputTokens: 80, CostUSD: 0.02, Success: false})
	tr.Track(Record{RequestID: "r3", Provider: "perplexity", InputTokens: 10, OutputTokens: 5, CostUSD: 0.005, Success: true})

	sum := tr.Summary()
	require.Len(t, sum, 2)

	anthropic := sum["anthropic"]
	assert.EqualValues(t, 2, anthropic.Calls)
	assert.EqualValues(t, 1, anthropic.Failures)
	assert.EqualValues(t, 300, anthropic.InputTokens)
	assert.EqualValues(t, 130, anthropic.OutputTokens)
	assert.InDelta(t, 0.03, anthropic.CostUSD, 1e-9)

	pplx := sum["perplexity"]
	assert.EqualValues(t, 1, pplx.Calls)
	assert.EqualValues(t, 0, pplx.Failures)
}

func TestTracker_RecentReturnsNewestLast(t *testing.T) {
	tr := NewTracker(10)
	for i := 0; i < 5; i++ {
		tr.Track(Record{RequestID: fmt.Sprintf("r%d", i), Provider: "anthropic"})
	}

	recent := tr.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "r3", recent[0].RequestID)
	assert.Equal(t, "r4", recent[1].RequestID)

	// Zero or oversized n returns everything.
	assert.Len(t, tr.Recent(0), 5)
	assert.Len(t, tr.Recent(100), 5)
}

func TestTracker_TrimsToMaxKeep(t *testing.T) {
	tr := NewTracker(3)
	for i := 0; i < 10; i++ {
		tr.Track(Record{RequestID: fmt.Sprintf("r%d", i), Provider: "anthropic", CostUSD: 1})
	}

	recent := tr.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "r7", recent[0].RequestID)

	// Totals survive record trimming.
	assert.InDelta(t, 10.0, tr.Summary()["anthropic"].CostUSD, 1e-9)
}

func TestTracker_StampsTime(t *testing.T) {
	tr := NewTracker(1)
	tr.Track(Record{RequestID: "r", Provider: "anthropic"})
	assert.False(t, tr.Recent(1)[0].At.IsZero())
}
