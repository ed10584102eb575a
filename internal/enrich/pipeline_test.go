package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philhumber/wineApp-sub000/internal/llm"
	"github.com/philhumber/wineApp-sub000/internal/resilience"
	"github.com/philhumber/wineApp-sub000/internal/store"
	"github.com/philhumber/wineApp-sub000/internal/stream"
	"github.com/philhumber/wineApp-sub000/internal/wine"
)

// fakeRuntime scripts the research call; chunks split streamed deltas.
type fakeRuntime struct {
	calls  int
	chunks []string
	err    error
}

func (f *fakeRuntime) Call(_ context.Context, _ string, _ llm.Request) (*llm.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var text string
	for _, c := range f.chunks {
		text += c
	}
	return &llm.Result{Text: text, Model: "sonar-pro", CostUSD: 0.01}, nil
}

func (f *fakeRuntime) CallStreaming(_ context.Context, _ string, _ llm.Request, onDelta func(string)) (*llm.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var text string
	for _, c := range f.chunks {
		onDelta(c)
		text += c
	}
	return &llm.Result{Text: text, Model: "sonar-pro", CostUSD: 0.01}, nil
}

func testPipeline(rt Runtime) (*Pipeline, *Cache) {
	cache := NewCache(store.NewMemory())
	return NewPipeline(rt, cache, NewResolver(cache, nil), Config{
		Provider: "perplexity",
		Model:    "sonar-pro",
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
	}), cache
}

func seedEntry(t *testing.T, cache *Cache, key string, data wine.EnrichmentData) {
	t.Helper()
	require.NoError(t, cache.Put(context.Background(), &CacheEntry{
		Key:        key,
		Data:       data,
		MatchType:  MatchExact,
		Confidence: 1.0,
		WrittenAt:  time.Now().UTC(),
	}))
}

func TestEnrich_ExactCacheHitMakesNoProviderCall(t *testing.T) {
	rt := &fakeRuntime{}
	p, cache := testPipeline(rt)
	seedEntry(t, cache, "chateau-margaux|margaux|2015", wine.EnrichmentData{
		Producer: "Château Margaux", WineName: "Margaux", Vintage: "2015",
	})

	out, err := p.Enrich(context.Background(), Request{
		Producer: "Château Margaux", WineName: "Margaux", Vintage: "2015",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, out.Source)
	assert.Equal(t, "Château Margaux", out.Data.Producer)
	assert.Zero(t, rt.calls)
}

func TestEnrich_AbbreviationHitServesFromCache(t *testing.T) {
	rt := &fakeRuntime{}
	p, cache := testPipeline(rt)
	seedEntry(t, cache, "chateau-margaux|margaux|2015", wine.EnrichmentData{
		Producer: "Château Margaux", WineName: "Margaux", Vintage: "2015",
	})

	// Abbreviation confidence 0.95 clears the 0.9 auto-accept threshold.
	out, err := p.Enrich(context.Background(), Request{
		Producer: "Ch. Margaux", WineName: "Margaux", Vintage: "2015",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, out.Source)
	assert.Nil(t, out.Confirmation)
	assert.Zero(t, rt.calls)
}

func TestEnrich_FuzzyBelowThresholdRequiresConfirmation(t *testing.T) {
	rt := &fakeRuntime{}
	p, cache := testPipeline(rt)
	seedEntry(t, cache, "abd|defgi|2015", wine.EnrichmentData{Producer: "abd", WineName: "defgi"})

	out, err := p.Enrich(context.Background(), Request{
		Producer: "abc", WineName: "defgh", Vintage: "2015",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Confirmation)
	assert.Equal(t, "fuzzy", out.Confirmation.MatchType)
	assert.Equal(t, "abc|defgh|2015", out.Confirmation.SearchedFor)
	assert.Equal(t, "abd|defgi|2015", out.Confirmation.MatchedTo)
	assert.Less(t, out.Confirmation.Confidence, 0.9)
	assert.Zero(t, rt.calls)
}

func TestEnrich_ConfirmMatchAcceptsFuzzyMatch(t *testing.T) {
	rt := &fakeRuntime{}
	p, cache := testPipeline(rt)
	seedEntry(t, cache, "abd|defgi|2015", wine.EnrichmentData{Producer: "abd", WineName: "defgi"})

	// The handshake is stateless: the second call re-resolves to the same
	// match and accepts it.
	out, err := p.Enrich(context.Background(), Request{
		Producer: "abc", WineName: "defgh", Vintage: "2015", ConfirmMatch: true,
	})
	require.NoError(t, err)
	assert.Nil(t, out.Confirmation)
	assert.Equal(t, SourceCache, out.Source)
	assert.Equal(t, "abd", out.Data.Producer)
	assert.Zero(t, rt.calls)
}

func TestEnrich_MissResearchesAndCaches(t *testing.T) {
	rt := &fakeRuntime{chunks: []string{
		`{"producer":"Penfolds","wine_name":"Grange",`,
		`"vintage":"2016","abv":14.5}`,
	}}
	p, cache := testPipeline(rt)

	out, err := p.Enrich(context.Background(), Request{
		Producer: "Penfolds", WineName: "Grange", Vintage: "2016",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceWebSearch, out.Source)
	assert.Equal(t, "Penfolds", out.Data.Producer)
	assert.Equal(t, 1, rt.calls)

	entry, err := cache.Get(context.Background(), "penfolds|grange|2016")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, MatchExact, entry.MatchType)
	assert.InDelta(t, 1.0, entry.Confidence, 1e-9)
	assert.False(t, entry.WrittenAt.IsZero())
}

func TestEnrich_ForceRefreshBypassesCacheAndMerges(t *testing.T) {
	rt := &fakeRuntime{chunks: []string{
		`{"producer":"Penfolds","wine_name":"Grange","tasting_notes":"fresh"}`,
	}}
	p, cache := testPipeline(rt)
	seedEntry(t, cache, "penfolds|grange|2016", wine.EnrichmentData{
		Producer: "Penfolds", WineName: "Grange", Vintage: "2016", ABV: 14.5,
	})

	out, err := p.Enrich(context.Background(), Request{
		Producer: "Penfolds", WineName: "Grange", Vintage: "2016", ForceRefresh: true,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceWebSearch, out.Source)
	assert.Equal(t, 1, rt.calls)

	// Prior non-null fields survive the refresh.
	assert.Equal(t, "2016", out.Data.Vintage)
	assert.InDelta(t, 14.5, out.Data.ABV, 1e-9)
	assert.Equal(t, "fresh", out.Data.TastingNotes)
}

func TestEnrich_ProviderErrorLeavesCacheUntouched(t *testing.T) {
	rt := &fakeRuntime{err: llm.NewProviderError(llm.KindServerError, "perplexity", false, errors.New("500"))}
	p, cache := testPipeline(rt)

	_, err := p.Enrich(context.Background(), Request{Producer: "Penfolds", WineName: "Grange"})
	require.Error(t, err)

	count, cerr := cache.Count(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count)
}

func TestEnrich_ValidationFailureNotCached(t *testing.T) {
	rt := &fakeRuntime{chunks: []string{`{"tasting_notes":"nice but anonymous"}`}}
	p, cache := testPipeline(rt)

	_, err := p.Enrich(context.Background(), Request{Producer: "Ghost", WineName: "Wine"})
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, llm.KindValidation, pe.Kind)

	count, cerr := cache.Count(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count)
}

func TestEnrich_EmptyRequestRejected(t *testing.T) {
	p, _ := testPipeline(&fakeRuntime{})
	_, err := p.Enrich(context.Background(), Request{})
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, llm.KindValidation, pe.Kind)
}

func TestEnrich_WarningsReturnedButNeverCached(t *testing.T) {
	rt := &fakeRuntime{chunks: []string{
		`{"producer":"X","wine_name":"Y","abv":47}`,
	}}
	p, cache := testPipeline(rt)

	out, err := p.Enrich(context.Background(), Request{Producer: "X", WineName: "Y"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Data.Warnings)

	entry, err := cache.Get(context.Background(), "x|y|")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Empty(t, entry.Data.Warnings)
}

func TestEnrichStream_FieldEventsArriveIncrementally(t *testing.T) {
	rt := &fakeRuntime{chunks: []string{
		`{"producer":"Penfolds",`,
		`"wine_name":"Grange",`,
		`"abv":14.5}`,
	}}
	p, _ := testPipeline(rt)

	var events []stream.Event
	out, err := p.EnrichStream(context.Background(), Request{
		Producer: "Penfolds", WineName: "Grange", Vintage: "2016",
	}, func(ev stream.Event) { events = append(events, ev) })
	require.NoError(t, err)
	assert.Equal(t, SourceWebSearch, out.Source)

	var fieldNames []string
	for _, ev := range events {
		if ev.Type == stream.EventField {
			fieldNames = append(fieldNames, ev.Field.Name)
		}
	}
	assert.Equal(t, []string{"producer", "wine_name", "abv"}, fieldNames)

	require.GreaterOrEqual(t, len(events), 5)
	assert.Equal(t, stream.EventResult, events[len(events)-2].Type)
	assert.Equal(t, stream.EventDone, events[len(events)-1].Type)
}

func TestEnrichStream_CacheHitReplaysFields(t *testing.T) {
	rt := &fakeRuntime{}
	p, cache := testPipeline(rt)
	seedEntry(t, cache, "ridge|monte-bello|2016", wine.EnrichmentData{
		Producer: "Ridge", WineName: "Monte Bello", Vintage: "2016", ABV: 13.5,
	})

	var events []stream.Event
	_, err := p.EnrichStream(context.Background(), Request{
		Producer: "Ridge", WineName: "Monte Bello", Vintage: "2016",
	}, func(ev stream.Event) { events = append(events, ev) })
	require.NoError(t, err)

	assert.Equal(t, stream.EventField, events[0].Type)
	assert.Equal(t, stream.EventDone, events[len(events)-1].Type)
	assert.Zero(t, rt.calls)
}

func TestEnrichStream_ConfirmationEmitsEventThenDone(t *testing.T) {
	rt := &fakeRuntime{}
	p, cache := testPipeline(rt)
	seedEntry(t, cache, "abd|defgi|2015", wine.EnrichmentData{Producer: "abd", WineName: "defgi"})

	var events []stream.Event
	out, err := p.EnrichStream(context.Background(), Request{
		Producer: "abc", WineName: "defgh", Vintage: "2015",
	}, func(ev stream.Event) { events = append(events, ev) })
	require.NoError(t, err)
	require.NotNil(t, out.Confirmation)

	require.Len(t, events, 2)
	assert.Equal(t, stream.EventConfirmationRequired, events[0].Type)
	assert.Equal(t, stream.EventDone, events[1].Type)
}

func TestEnrichStream_ProviderErrorEmitsErrorEvent(t *testing.T) {
	rt := &fakeRuntime{err: llm.NewProviderError(llm.KindRateLimit, "perplexity", true, errors.New("429"))}
	p, _ := testPipeline(rt)

	var events []stream.Event
	_, err := p.EnrichStream(context.Background(), Request{
		Producer: "Penfolds", WineName: "Grange",
	}, func(ev stream.Event) { events = append(events, ev) })
	require.Error(t, err)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, stream.EventError, last.Type)
	assert.Equal(t, "rate_limit", last.Error.Type)
}

func TestEnrich_CancellationSkipsCacheWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &cancellingRuntime{cancel: cancel}
	cache := NewCache(store.NewMemory())
	p := NewPipeline(rt, cache, NewResolver(cache, nil), Config{Provider: "perplexity", Model: "sonar-pro"})

	_, err := p.Enrich(ctx, Request{Producer: "Penfolds", WineName: "Grange"})
	require.Error(t, err)

	count, cerr := cache.Count(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count)
}

func TestEnrichStream_StoreErrorEmitsStructuredErrorEvent(t *testing.T) {
	cache := NewCache(&failingStore{MemoryStore: store.NewMemory()})
	p := NewPipeline(&fakeRuntime{}, cache, NewResolver(cache, nil), Config{
		Provider: "perplexity", Model: "sonar-pro",
	})

	var events []stream.Event
	_, err := p.EnrichStream(context.Background(), Request{
		Producer: "Penfolds", WineName: "Grange",
	}, func(ev stream.Event) { events = append(events, ev) })
	require.Error(t, err)

	// A failure outside the provider taxonomy must still cross the stream
	// boundary as a structured error event, never as silence.
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, stream.EventError, last.Type)
	assert.Equal(t, "server_error", last.Error.Type)
	assert.NotEmpty(t, last.Error.Message)
	assert.NotEmpty(t, last.Error.UserMessage)
}

// failingStore errors on every read, standing in for a broken cache backend.
type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) GetEntry(context.Context, string) (*store.Entry, error) {
	return nil, errors.New("disk read failed")
}

// cancellingRuntime cancels the request context mid-call and still returns
// a full payload, mimicking a disconnect racing a completed response.
type cancellingRuntime struct {
	cancel context.CancelFunc
}

func (c *cancellingRuntime) Call(_ context.Context, _ string, _ llm.Request) (*llm.Result, error) {
	c.cancel()
	return &llm.Result{Text: `{"producer":"Penfolds","wine_name":"Grange"}`}, nil
}

func (c *cancellingRuntime) CallStreaming(ctx context.Context, providerID string, req llm.Request, _ func(string)) (*llm.Result, error) {
	return c.Call(ctx, providerID, req)
}
