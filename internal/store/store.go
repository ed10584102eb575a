// Package store persists enrichment cache entries. Two backends are
// provided: SQLite for single-node deployments and Postgres for shared
// ones, selected by configuration.
package store

import (
	"context"
	"time"
)

// Entry is one cached enrichment payload under its canonical key. Entries
// are immutable once written except for replacement on explicit refresh;
// at most one entry exists per canonical key.
type Entry struct {
	Key        string    `json:"key"`
	Data       []byte    `json:"data"` // EnrichmentData JSON
	MatchType  string    `json:"match_type"`
	Confidence float64   `json:"confidence"`
	WrittenAt  time.Time `json:"written_at"`
}

// Store is the persistence interface for the enrichment cache.
type Store interface {
	// GetEntry returns the entry for key, or nil if absent.
	GetEntry(ctx context.Context, key string) (*Entry, error)
	// PutEntry upserts an entry under its canonical key (last writer wins).
	PutEntry(ctx context.Context, e *Entry) error
	// Keys returns all canonical keys, for fuzzy matching.
	Keys(ctx context.Context) ([]string, error)
	// DeleteEntry removes an entry, reporting whether it existed.
	DeleteEntry(ctx context.Context, key string) (bool, error)
	// Count returns the number of cached entries.
	Count(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
