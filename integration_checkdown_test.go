package solvercore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
	"github.com/ehrlich-postflop/solver-core/pkg/solver"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

func mustCard(t *testing.T, s string) cards.Card {
	t.Helper()
	c, err := cards.ParseCard(s)
	require.NoError(t, err)
	return c
}

// buildCheckdownTree hand-assembles a flop-to-river tree where both
// players always check and the chance nodes each have a single fixed
// outcome (Ad on the turn, Ks on the river). Every street is OOP then IP,
// pot stays at 10 throughout, and the river closes in a showdown.
func buildCheckdownTree(t *testing.T, rangeSize int) *tree.Node {
	t.Helper()
	check := []tree.Action{{Type: tree.Check}}
	commit := [2]float64{5, 5}
	pot := commit[0] + commit[1]

	showdown := tree.NewShowdownNode(tree.River, pot,
		[2]float64{commit[1], -commit[1]},
		[2]float64{-commit[0], commit[0]},
		[2]float64{0, 0})

	riverIP := tree.NewActionNode(tree.River, pot, tree.IP, check, []*tree.Node{showdown}, rangeSize)
	riverOOP := tree.NewActionNode(tree.River, pot, tree.OOP, check, []*tree.Node{riverIP}, rangeSize)
	riverChance := tree.NewChanceNode(tree.River, pot, []tree.ChanceOutcome{
		{DealtCards: []cards.Card{mustCard(t, "Ks")}, Child: riverOOP},
	}, false)

	turnIP := tree.NewActionNode(tree.Turn, pot, tree.IP, check, []*tree.Node{riverChance}, rangeSize)
	turnOOP := tree.NewActionNode(tree.Turn, pot, tree.OOP, check, []*tree.Node{turnIP}, rangeSize)
	turnChance := tree.NewChanceNode(tree.Turn, pot, []tree.ChanceOutcome{
		{DealtCards: []cards.Card{mustCard(t, "Ad")}, Child: turnOOP},
	}, false)

	flopIP := tree.NewActionNode(tree.Flop, pot, tree.IP, check, []*tree.Node{turnChance}, rangeSize)
	flopOOP := tree.NewActionNode(tree.Flop, pot, tree.OOP, check, []*tree.Node{flopIP}, rangeSize)

	tree.AssignMetadata(flopOOP)
	return flopOOP
}

// TestIntegration_FlopToRiverCheckdown runs the best response over a
// deterministic flop-to-river checkdown with AA (player 0) vs KK (player
// 1). The dealt Ad kills half of AA's combos and the dealt Ks half of
// KK's; the surviving AA combos each win the full +5, so weighting by the
// initial (flop) reach probabilities halves both totals to exactly ±2.5.
func TestIntegration_FlopToRiverCheckdown(t *testing.T) {
	flop := boardMask(t, "2h5c7d")
	ipRange := parseRange(t, "AA", flop)
	oopRange := parseRange(t, "KK", flop)
	require.Len(t, ipRange, 6)
	require.Len(t, oopRange, 6)

	root := buildCheckdownTree(t, 6)

	rangeMgr := ranges.NewManager(ipRange, oopRange, flop)
	riverCache := ranges.NewRiverCache(testEvaluator(t))
	br := solver.NewBestResponse(root, rangeMgr, riverCache)

	ev0, perHand0, err := br.EV(0)
	require.NoError(t, err)
	require.InDelta(t, 2.5, ev0, 1e-9)

	adMask := mustCard(t, "Ad").Mask()
	for h, combo := range ipRange {
		if combo.ConflictsWith(adMask) {
			require.InDeltaf(t, 0.0, perHand0[h], 1e-9, "combo %s is dead once the Ad falls", combo)
		} else {
			require.InDeltaf(t, 5.0, perHand0[h], 1e-9, "combo %s wins the full pot share", combo)
		}
	}

	ev1, _, err := br.EV(1)
	require.NoError(t, err)
	require.InDelta(t, -2.5, ev1, 1e-9)

	expl, err := br.Exploitability()
	require.NoError(t, err)
	require.InDelta(t, 0.0, expl, 1e-9)
}
