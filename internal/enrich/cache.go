package enrich

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/philhumber/wineApp-sub000/internal/store"
	"github.com/philhumber/wineApp-sub000/internal/wine"
)

// MatchType classifies how a requested wine was matched to a cached key.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchAbbreviation MatchType = "abbreviation"
	MatchAlias        MatchType = "alias"
	MatchFuzzy        MatchType = "fuzzy"
)

// CacheEntry is a typed view of one cached enrichment payload.
type CacheEntry struct {
	Key        string              `json:"key"`
	Data       wine.EnrichmentData `json:"data"`
	MatchType  MatchType           `json:"match_type"`
	Confidence float64             `json:"confidence"`
	WrittenAt  time.Time           `json:"written_at"`
}

// Cache wraps the persistence layer with (un)marshalling. Reads and writes
// are independent per key; writes are last-writer-wins.
type Cache struct {
	store store.Store
}

// NewCache creates a Cache over the given store.
func NewCache(s store.Store) *Cache {
	return &Cache{store: s}
}

// Get returns the entry for a canonical key, or nil when absent.
func (c *Cache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	raw, err := c.store.GetEntry(ctx, key)
	if err != nil || raw == nil {
		return nil, err
	}

	var data wine.EnrichmentData
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, eris.Wrapf(err, "enrich: unmarshal cache entry %s", key)
	}
	return &CacheEntry{
		Key:        raw.Key,
		Data:       data,
		MatchType:  MatchType(raw.MatchType),
		Confidence: raw.Confidence,
		WrittenAt:  raw.WrittenAt,
	}, nil
}

// Put upserts an entry under its canonical key.
func (c *Cache) Put(ctx context.Context, e *CacheEntry) error {
	// Warnings are per-response metadata, never cached.
	data := e.Data
	data.Warnings = nil

	raw, err := json.Marshal(data)
	if err != nil {
		return eris.Wrapf(err, "enrich: marshal cache entry %s", e.Key)
	}
	return c.store.PutEntry(ctx, &store.Entry{
		Key:        e.Key,
		Data:       raw,
		MatchType:  string(e.MatchType),
		Confidence: e.Confidence,
		WrittenAt:  e.WrittenAt,
	})
}

// Keys lists all cached canonical keys.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx)
}

// Delete removes a cached entry, reporting whether it existed.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	return c.store.DeleteEntry(ctx, key)
}

// Count returns the number of cached entries.
func (c *Cache) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}
