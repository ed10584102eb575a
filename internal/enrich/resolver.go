package enrich

import (
	"context"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"
)

// Confidence assigned per match type; fuzzy confidence is computed from
// edit distance instead.
const (
	confidenceExact        = 1.0
	confidenceAbbreviation = 0.95
	confidenceAlias        = 0.9
)

// Match is the outcome of resolving a requested wine against the cache.
type Match struct {
	Key        string
	Entry      *CacheEntry
	Type       MatchType
	Confidence float64
}

// Resolver matches a requested (producer, wine, vintage) against cached
// canonical keys: exact, then abbreviation-expanded, then alias, then
// fuzzy by edit distance. Purely functional over the cache contents.
type Resolver struct {
	cache   *Cache
	aliases *AliasTable
}

// NewResolver creates a resolver over the cache with the given alias table.
func NewResolver(cache *Cache, aliases *AliasTable) *Resolver {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Resolver{cache: cache, aliases: aliases}
}

// Resolve returns the best cache match, or nil when nothing clears the
// fuzzy threshold.
func (r *Resolver) Resolve(ctx context.Context, producer, wineName, vintage string) (*Match, error) {
	// Pass 1: exact canonical key.
	exactKey := CanonicalKey(producer, wineName, vintage)
	if m, err := r.lookup(ctx, exactKey, MatchExact, confidenceExact); m != nil || err != nil {
		return m, err
	}

	// Pass 2: abbreviation-expanded key.
	expandedKey := ExpandedKey(producer, wineName, vintage)
	if expandedKey != exactKey {
		if m, err := r.lookup(ctx, expandedKey, MatchAbbreviation, confidenceAbbreviation); m != nil || err != nil {
			return m, err
		}
	}

	// Pass 3: producer alias, checked on both the raw and expanded slugs
	// since abbreviation expansion can rewrite an aliased name.
	rawProducer, rawWine, _ := SplitKey(exactKey)
	expProducer, expWine, _ := SplitKey(expandedKey)
	for _, cand := range [][2]string{{rawProducer, rawWine}, {expProducer, expWine}} {
		canonical := r.aliases.Producer(cand[0])
		if canonical == "" {
			continue
		}
		aliasKey := canonical + "|" + cand[1] + "|" + slug(vintage)
		if m, err := r.lookup(ctx, aliasKey, MatchAlias, confidenceAlias); m != nil || err != nil {
			return m, err
		}
	}

	// Pass 4: fuzzy over all known keys.
	return r.fuzzy(ctx, expandedKey)
}

func (r *Resolver) lookup(ctx context.Context, key string, typ MatchType, confidence float64) (*Match, error) {
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	zap.L().Debug("resolver match",
		zap.String("key", key),
		zap.String("match_type", string(typ)),
	)
	return &Match{Key: key, Entry: entry, Type: typ, Confidence: confidence}, nil
}

// fuzzyLimit returns the maximum permitted edit distance for a name,
// scaled by length: short names tolerate 1 edit, medium 2, long 3. This
// mirrors the duplicate-matching policy used for the user's cellar.
func fuzzyLimit(name string) int {
	switch n := len(name); {
	case n <= 5:
		return 1
	case n <= 10:
		return 2
	default:
		return 3
	}
}

func (r *Resolver) fuzzy(ctx context.Context, wantKey string) (*Match, error) {
	keys, err := r.cache.Keys(ctx)
	if err != nil {
		return nil, err
	}

	wantProducer, wantWine, wantVintage := SplitKey(wantKey)

	bestKey := ""
	bestDist := -1
	for _, key := range keys {
		producer, wineName, vintage := SplitKey(key)
		if vintage != wantVintage {
			continue
		}

		pd := matchr.Levenshtein(wantProducer, producer)
		if pd > fuzzyLimit(wantProducer) {
			continue
		}
		wd := matchr.Levenshtein(wantWine, wineName)
		if wd > fuzzyLimit(wantWine) {
			continue
		}

		if total := pd + wd; bestDist < 0 || total < bestDist {
			bestDist = total
			bestKey = key
		}
	}

	if bestKey == "" {
		return nil, nil
	}

	entry, err := r.cache.Get(ctx, bestKey)
	if err != nil || entry == nil {
		return nil, err
	}

	denom := len(wantProducer) + len(wantWine)
	confidence := 0.0
	if denom > 0 {
		confidence = 1 - float64(bestDist)/float64(denom)
		if confidence < 0 {
			confidence = 0
		}
	}

	zap.L().Debug("resolver fuzzy match",
		zap.String("searched", wantKey),
		zap.String("matched", bestKey),
		zap.Int("distance", bestDist),
		zap.Float64("confidence", confidence),
	)
	return &Match{Key: bestKey, Entry: entry, Type: MatchFuzzy, Confidence: confidence}, nil
}
