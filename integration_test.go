package solvercore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/eval"
	"github.com/ehrlich-postflop/solver-core/pkg/notation"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
	"github.com/ehrlich-postflop/solver-core/pkg/solver"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

// testEvaluator loads an evaluator whose dictionary covers exactly the
// hand classes the integration scenarios below can reach. Ranks only need
// to respect relative ordering (lower is stronger); the non-flush table is
// keyed by rank multiset, so one line covers every suit assignment.
func testEvaluator(t *testing.T) *eval.Evaluator {
	t.Helper()
	lines := []string{
		"As-Ah-Ad-Ks-7d,10",  // trip aces (checkdown runout)
		"Ks-Kh-Kd-Ad-7d,20",  // trip kings (checkdown runout)
		"As-Ah-Jc-Ts-7d,100", // pair of aces on the J-T-7 river
		"Ks-Kh-Jc-Ts-7d,200", // pair of kings
		"Qs-Qh-Jc-Ts-7d,300", // pair of queens
		"As-Kh-Jc-Ts-7d,500", // ace-king high
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ranks.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	ev, err := eval.LoadEvaluator(path)
	require.NoError(t, err)
	return ev
}

func boardMask(t *testing.T, s string) uint64 {
	t.Helper()
	cs, err := cards.ParseCards(s)
	require.NoError(t, err)
	return cards.CardsToMask(cs)
}

func parseRange(t *testing.T, s string, board uint64) ranges.Range {
	t.Helper()
	r, err := notation.ParseRange(s, board)
	require.NoError(t, err)
	return r
}

// checkOnlyRiverRule describes a river subgame where neither player has
// any bet size available, so the only line is check-check to showdown.
func checkOnlyRiverRule(t *testing.T, board uint64) tree.Rule {
	t.Helper()
	return tree.Rule{
		StartingRound:     tree.River,
		InitialBoardMask:  board,
		InitialCommitment: tree.Commitments{IP: 5, OOP: 5},
		SmallBlind:        0.5,
		BigBlind:          1,
		EffectiveStack:    100,
		RaiseCapPerStreet: 2,
		BuildingSettings: map[string]tree.StreetSetting{
			"river_ip":  {},
			"river_oop": {},
		},
	}
}

// TestIntegration_RiverCheckCheck pits AA (IP, player 0) against KK (OOP,
// player 1) on a blank river where the only line is check-check. AA wins
// every showdown, so the best response for player 0 is worth the full +5
// opponent commitment, player 1 loses the same, and the profile is
// unexploitable.
func TestIntegration_RiverCheckCheck(t *testing.T) {
	board := boardMask(t, "2h5c7dTsJc")
	ipRange := parseRange(t, "AA", board)
	oopRange := parseRange(t, "KK", board)

	root, err := tree.Build(checkOnlyRiverRule(t, board), len(ipRange), len(oopRange))
	require.NoError(t, err)

	rangeMgr := ranges.NewManager(ipRange, oopRange, board)
	riverCache := ranges.NewRiverCache(testEvaluator(t))
	s := solver.New(root, rangeMgr, riverCache)

	completed, err := s.Train(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 10, completed)

	br := s.BestResponse()

	ev0, perHand0, err := br.EV(0)
	require.NoError(t, err)
	require.InDelta(t, 5.0, ev0, 1e-9)
	for h, v := range perHand0 {
		require.InDeltaf(t, 5.0, v, 1e-9, "AA combo %d", h)
	}

	ev1, _, err := br.EV(1)
	require.NoError(t, err)
	require.InDelta(t, -5.0, ev1, 1e-9)

	expl, err := br.Exploitability()
	require.NoError(t, err)
	require.InDelta(t, 0.0, expl, 1e-9)
}

// TestIntegration_RiverValueBet gives the IP player the stone-cold nuts
// with one pot-sized bet available. Betting weakly dominates checking
// back (the opponent sometimes calls), so the trained average strategy
// must put most of its weight on the bet.
func TestIntegration_RiverValueBet(t *testing.T) {
	board := boardMask(t, "2h5c7dTsJc")
	ipRange := parseRange(t, "AA", board)
	oopRange := parseRange(t, "KK", board)

	rule := checkOnlyRiverRule(t, board)
	rule.BuildingSettings = map[string]tree.StreetSetting{
		"river_ip":  {BetSizesPercent: []float64{100}},
		"river_oop": {},
	}

	root, err := tree.Build(rule, len(ipRange), len(oopRange))
	require.NoError(t, err)

	rangeMgr := ranges.NewManager(ipRange, oopRange, board)
	riverCache := ranges.NewRiverCache(testEvaluator(t))
	s := solver.New(root, rangeMgr, riverCache)

	_, err = s.Train(context.Background(), 500)
	require.NoError(t, err)

	// Root is OOP with only CHECK; its child is the IP node with
	// [CHECK, BET 10].
	ipNode := root.Children[0]
	require.Equal(t, tree.ActionNode, ipNode.Kind)
	require.Equal(t, tree.IP, ipNode.Player)
	require.Len(t, ipNode.Actions, 2)

	avg := ipNode.Trainable().AverageStrategy()
	hands := ipNode.RangeSize
	for h := 0; h < hands; h++ {
		betProb := avg[1*hands+h]
		require.Greaterf(t, betProb, 0.6, "AA combo %d should mostly value-bet, got %v", h, betProb)
	}
}

func sumStrategyRow(avg []float64, actions, hands, h int) float64 {
	var s float64
	for a := 0; a < actions; a++ {
		s += avg[a*hands+h]
	}
	return s
}

func requireRowsNormalized(t *testing.T, n *tree.Node) {
	t.Helper()
	if n.Kind != tree.ActionNode {
		return
	}
	avg := n.Trainable().AverageStrategy()
	for h := 0; h < n.RangeSize; h++ {
		require.InDelta(t, 1.0, sumStrategyRow(avg, len(n.Actions), n.RangeSize, h), 1e-9)
	}
}
