// Package enrich implements canonical key resolution, the enrichment
// cache, and the cache-first, web-search-grounded enrichment pipeline.
package enrich

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// abbreviations maps common wine-label shorthand to its expanded form,
// compared on lowercased tokens with trailing dots stripped.
var abbreviations = map[string]string{
	"ch":   "chateau",
	"chat": "chateau",
	"cht":  "chateau",
	"dom":  "domaine",
	"bod":  "bodega",
	"vyd":  "vineyard",
	"vyds": "vineyards",
	"mt":   "mount",
	"st":   "saint",
	"ste":  "sainte",
	"cab":  "cabernet",
	"sauv": "sauvignon",
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldDiacritics strips combining marks: "Château" → "Chateau".
func foldDiacritics(s string) string {
	out, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		return s
	}
	return out
}

// slug lowercases, folds diacritics, and joins word runs with hyphens.
func slug(s string) string {
	s = strings.ToLower(foldDiacritics(s))
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ExpandAbbreviations rewrites shorthand tokens: "Ch. Margaux" →
// "chateau margaux". Output is lowercased and diacritic-folded.
func ExpandAbbreviations(s string) string {
	tokens := strings.Fields(strings.ToLower(foldDiacritics(s)))
	for i, tok := range tokens {
		bare := strings.TrimRight(tok, ".")
		if full, ok := abbreviations[bare]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// CanonicalKey builds the normalized cache identity for a wine:
// "producer|wine|vintage", e.g. "chateau-margaux|margaux|2015". Vintage
// may be empty for non-vintage wines.
func CanonicalKey(producer, wineName, vintage string) string {
	return slug(producer) + "|" + slug(wineName) + "|" + slug(vintage)
}

// ExpandedKey is CanonicalKey with abbreviation expansion applied first.
func ExpandedKey(producer, wineName, vintage string) string {
	return CanonicalKey(ExpandAbbreviations(producer), ExpandAbbreviations(wineName), vintage)
}

// SplitKey breaks a canonical key back into its three parts.
func SplitKey(key string) (producer, wineName, vintage string) {
	parts := strings.SplitN(key, "|", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}
