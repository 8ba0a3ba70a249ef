package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(
		Definition{
			ID:              "alpha",
			CampaignType:    "travel",
			Keywords:        []string{"k1", "k2", "k3", "k4"},
			PositiveSignals: []string{"any tips"},
			NegativeSignals: []string{"hiring", "discount"},
			Persona:         "friendly",
			ScoreBonus:      5,
		},
		Definition{
			ID:           "beta",
			CampaignType: "travel",
			Keywords:     []string{"b1"},
		},
	)
	require.NoError(t, err)
	return r
}

func TestFirstRegisteredStrategyIsActive(t *testing.T) {
	r := testRegistry(t)
	require.Equal(t, "alpha", r.Active().ID)
}

func TestActivateSwitchesAtomically(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Activate("beta"))
	require.Equal(t, "beta", r.Active().ID)
	require.Equal(t, []string{"b1"}, r.KeywordsForCycle(10))

	require.Error(t, r.Activate("nope"))
	require.Equal(t, "beta", r.Active().ID)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := testRegistry(t)
	err := r.Register(Definition{ID: "alpha"})
	require.Error(t, err)
	require.Error(t, r.Register(Definition{}))
}

func TestKeywordsForCycleBounded(t *testing.T) {
	r := testRegistry(t)
	require.Equal(t, []string{"k1", "k2", "k3"}, r.KeywordsForCycle(3))
	require.Len(t, r.KeywordsForCycle(10), 4)
	require.Len(t, r.KeywordsForCycle(0), 4)
}

func TestCheckSignalsNegativeRejects(t *testing.T) {
	r := testRegistry(t)
	check := r.CheckSignals("We're HIRING a travel blogger")
	require.False(t, check.OK)
	require.Contains(t, check.Reason, "hiring")
}

func TestCheckSignalsPositiveBonus(t *testing.T) {
	r := testRegistry(t)

	check := r.CheckSignals("First time visiting Paris, any tips?")
	require.True(t, check.OK)
	require.Equal(t, 5, check.Bonus)

	check = r.CheckSignals("just landed in paris")
	require.True(t, check.OK)
	require.Zero(t, check.Bonus)
}

func TestAllPreservesRegistrationOrder(t *testing.T) {
	r := testRegistry(t)
	defs := r.All()
	require.Len(t, defs, 2)
	require.Equal(t, "alpha", defs[0].ID)
	require.Equal(t, "beta", defs[1].ID)
}

func TestDefaultRegistryBuiltins(t *testing.T) {
	r := DefaultRegistry()
	defs := r.All()
	require.NotEmpty(t, defs)
	for _, def := range defs {
		require.NotEmpty(t, def.Keywords, def.ID)
		require.NotEmpty(t, def.NegativeSignals, def.ID)
	}
	require.Equal(t, "travel-first-timers", r.Active().ID)
}
