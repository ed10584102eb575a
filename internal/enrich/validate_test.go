package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philhumber/wineApp-sub000/internal/wine"
)

func TestValidate_CleanPayloadPasses(t *testing.T) {
	in := wine.EnrichmentData{
		Producer:     "Ridge",
		WineName:     "Monte Bello",
		Grapes:       []wine.GrapeComponent{{Variety: "Cabernet Sauvignon", Percent: 72}},
		CriticScores: []wine.CriticScore{{Critic: "Wine Advocate", Score: 98}},
		DrinkWindow:  &wine.DrinkWindow{From: 2024, To: 2045},
		ABV:          13.5,
	}

	out, warnings, err := Validate(in)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, in, out)
}

func TestValidate_BothIdentityFieldsMissingFails(t *testing.T) {
	_, _, err := Validate(wine.EnrichmentData{TastingNotes: "lovely"})
	assert.Error(t, err)
}

func TestValidate_OneIdentityFieldMissingWarns(t *testing.T) {
	out, warnings, err := Validate(wine.EnrichmentData{WineName: "Grange"})
	require.NoError(t, err)
	assert.Equal(t, "Grange", out.WineName)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "producer missing")
}

func TestValidate_DropsOutOfRangeCriticScores(t *testing.T) {
	in := wine.EnrichmentData{
		Producer: "X",
		WineName: "Y",
		CriticScores: []wine.CriticScore{
			{Critic: "A", Score: 95},
			{Critic: "B", Score: 105},
			{Critic: "C", Score: -3},
		},
	}
	out, warnings, err := Validate(in)
	require.NoError(t, err)
	require.Len(t, out.CriticScores, 1)
	assert.Equal(t, "A", out.CriticScores[0].Critic)
	assert.Len(t, warnings, 2)
}

func TestValidate_RepairsGrapeComponents(t *testing.T) {
	in := wine.EnrichmentData{
		Producer: "X",
		WineName: "Y",
		Grapes: []wine.GrapeComponent{
			{Variety: "Merlot", Percent: 60},
			{Variety: "", Percent: 40},
			{Variety: "Syrah", Percent: 140},
		},
	}
	out, warnings, err := Validate(in)
	require.NoError(t, err)
	require.Len(t, out.Grapes, 2)
	assert.Equal(t, "Merlot", out.Grapes[0].Variety)
	assert.Zero(t, out.Grapes[1].Percent, "invalid percent cleared")
	assert.Len(t, warnings, 2)
}

func TestValidate_DropsInvertedDrinkWindow(t *testing.T) {
	in := wine.EnrichmentData{
		Producer:    "X",
		WineName:    "Y",
		DrinkWindow: &wine.DrinkWindow{From: 2040, To: 2020},
	}
	out, warnings, err := Validate(in)
	require.NoError(t, err)
	assert.Nil(t, out.DrinkWindow)
	assert.Len(t, warnings, 1)
}

func TestValidate_ClearsImplausibleABV(t *testing.T) {
	in := wine.EnrichmentData{Producer: "X", WineName: "Y", ABV: 47}
	out, warnings, err := Validate(in)
	require.NoError(t, err)
	assert.Zero(t, out.ABV)
	assert.Len(t, warnings, 1)
}
