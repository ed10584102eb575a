package enrich

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// AliasTable maps well-known alternate producer names to their canonical
// slug. Lookups happen after abbreviation expansion.
type AliasTable struct {
	Producers map[string]string `yaml:"producers"`
}

// DefaultAliases returns the built-in producer alias table.
func DefaultAliases() *AliasTable {
	return &AliasTable{
		Producers: map[string]string{
			"dom-perignon":   "moet-chandon",
			"veuve":          "veuve-clicquot",
			"opus-1":         "opus-one",
			"la-mission":     "la-mission-haut-brion",
			"mouton":         "chateau-mouton-rothschild",
			"lafite":         "chateau-lafite-rothschild",
			"drc":            "domaine-de-la-romanee-conti",
			"screaming-eagle": "screaming-eagle-winery",
		},
	}
}

// LoadAliases reads an alias table from a YAML file and overlays it on the
// defaults. A missing path returns the defaults unchanged.
func LoadAliases(path string) (*AliasTable, error) {
	table := DefaultAliases()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		return nil, eris.Wrapf(err, "enrich: read alias file %s", path)
	}

	var loaded AliasTable
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, eris.Wrapf(err, "enrich: parse alias file %s", path)
	}
	for alias, canonical := range loaded.Producers {
		table.Producers[slug(alias)] = slug(canonical)
	}
	return table, nil
}

// Producer returns the canonical slug for an aliased producer slug, or ""
// when no alias is known.
func (t *AliasTable) Producer(producerSlug string) string {
	if t == nil {
		return ""
	}
	return t.Producers[producerSlug]
}
