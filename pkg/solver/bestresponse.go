package solver

import (
	"math"

	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

// BestResponseConfig carries the best responder's tunables.
// IsomorphismCollapse is declared for configuration parity but is never
// computed; it must stay false to preserve correctness.
type BestResponseConfig struct {
	IsomorphismCollapse bool
}

// BestResponse computes best-response values and exploitability
// against a tree's current average strategy. It shares the Range Manager
// and River Cache with the Solver that produced the strategy rather than
// owning its own copies.
type BestResponse struct {
	root       *tree.Node
	rangeMgr   *ranges.Manager
	riverCache *ranges.RiverCache
	config     BestResponseConfig
}

// NewBestResponse builds a BestResponse calculator over root with the
// default configuration, reading strategies from whatever DCFRTrainable
// tables its action nodes already hold.
func NewBestResponse(root *tree.Node, rangeMgr *ranges.Manager, riverCache *ranges.RiverCache) *BestResponse {
	return NewBestResponseWithConfig(root, rangeMgr, riverCache, BestResponseConfig{})
}

// NewBestResponseWithConfig is NewBestResponse with an explicit config.
func NewBestResponseWithConfig(root *tree.Node, rangeMgr *ranges.Manager, riverCache *ranges.RiverCache, config BestResponseConfig) *BestResponse {
	return &BestResponse{root: root, rangeMgr: rangeMgr, riverCache: riverCache, config: config}
}

// BestResponse returns a BestResponse calculator sharing this Solver's
// tree, Range Manager, and River Cache.
func (s *Solver) BestResponse() *BestResponse {
	return NewBestResponse(s.root, s.rangeMgr, s.riverCache)
}

// EV computes, for brPlayer, the expected value of playing a best
// response against the opponent's average (accumulated DCFR) strategy,
// starting from the initial board and both players' initial ranges.
// The returned per-hand vector is indexed like
// Manager.Range(brPlayer); the scalar is that vector weighted by the
// board-adjusted initial reach probabilities.
func (br *BestResponse) EV(brPlayer int) (float64, []float64, error) {
	board := br.rangeMgr.BoardMask()
	reach := [2][]float64{
		append([]float64(nil), br.rangeMgr.InitialReachProbs(0)...),
		append([]float64(nil), br.rangeMgr.InitialReachProbs(1)...),
	}

	nodeVals, err := br.nodeValue(br.root, brPlayer, reach, board, 1.0)
	if err != nil {
		return 0, nil, err
	}

	final := reach[brPlayer]
	var total float64
	for i, v := range nodeVals {
		total += v * final[i]
	}
	return total, nodeVals, nil
}

// Exploitability returns the average of both players' best-response EVs
// against the current average strategy: 0 at a Nash equilibrium, positive
// otherwise.
func (br *BestResponse) Exploitability() (float64, error) {
	ev0, _, err := br.EV(0)
	if err != nil {
		return 0, err
	}
	ev1, _, err := br.EV(1)
	if err != nil {
		return 0, err
	}
	return (ev0 + ev1) / 2.0, nil
}

// nodeValue dispatches on node kind exactly as EV's
// recursive traversal: action nodes either maximize (brPlayer acts) or
// sum-combine against the opponent's fixed average strategy; chance nodes
// fan out over every explicit outcome, weighting each branch uniformly
// since dealing is unconditioned on either range; showdown and terminal
// nodes use the per-card blocker-sum trick to stay linear in range size.
func (br *BestResponse) nodeValue(node *tree.Node, brPlayer int, reach [2][]float64, board uint64, chanceReach float64) ([]float64, error) {
	switch node.Kind {
	case tree.ActionNode:
		if node.Player == brPlayer {
			return br.actingNode(node, brPlayer, reach, board, chanceReach)
		}
		return br.opponentNode(node, brPlayer, reach, board, chanceReach)
	case tree.ChanceNode:
		return br.chanceNode(node, brPlayer, reach, board, chanceReach)
	case tree.ShowdownNode:
		return br.showdownNode(node, brPlayer, reach, board, chanceReach)
	default: // tree.TerminalNode
		return br.terminalNode(node, brPlayer, reach, board, chanceReach)
	}
}

// actingNode is reached when the best responder is to act: it picks,
// independently per hand, whichever action's child value is largest. The
// reach vectors are unchanged going into every child since the best
// responder's own choice doesn't reweight anyone's hand distribution.
func (br *BestResponse) actingNode(node *tree.Node, brPlayer int, reach [2][]float64, board uint64, chanceReach float64) ([]float64, error) {
	brHands := len(reach[brPlayer])
	out := make([]float64, brHands)
	for h := range out {
		out[h] = math.Inf(-1)
	}
	if len(node.Actions) == 0 {
		return out, nil
	}
	for _, child := range node.Children {
		childVal, err := br.nodeValue(child, brPlayer, reach, board, chanceReach)
		if err != nil {
			return nil, err
		}
		for h := range out {
			out[h] = math.Max(out[h], childVal[h])
		}
	}
	return out, nil
}

// opponentNode is reached when the fixed opponent is to act: their
// average strategy reweights their own reach per action, the best
// responder's reach is untouched, and the per-hand results are summed
// across actions. Each action's reweighted reach is renormalized to sum 1
// before recursing, so an action's contribution is not scaled by how often
// the opponent plays it; the sum equals the true value only when the
// opponent's strategy here is pure.
func (br *BestResponse) opponentNode(node *tree.Node, brPlayer int, reach [2][]float64, board uint64, chanceReach float64) ([]float64, error) {
	opponent := node.Player
	brHands := len(reach[brPlayer])
	out := make([]float64, brHands)

	sigma := node.Trainable().AverageStrategy()
	oppHands := len(reach[opponent])

	for a, child := range node.Children {
		nextOppReach := make([]float64, oppHands)
		var sum float64
		for h := 0; h < oppHands; h++ {
			nextOppReach[h] = reach[opponent][h] * sigma[a*oppHands+h]
			sum += nextOppReach[h]
		}
		if sum > epsilon {
			for h := range nextOppReach {
				nextOppReach[h] /= sum
			}
		} else {
			for h := range nextOppReach {
				nextOppReach[h] = 0
			}
		}

		nextReach := reach
		nextReach[opponent] = nextOppReach

		childVal, err := br.nodeValue(child, brPlayer, nextReach, board, chanceReach)
		if err != nil {
			return nil, err
		}
		for h := range out {
			out[h] += childVal[h]
		}
	}
	return out, nil
}

// chanceNode fans out over every explicit dealt-card outcome, zeroing
// and renormalizing both players' reach against the dealt cards exactly
// as the DCFR traversal does, then combines branch results uniformly
// weighted (every remaining card combination is, absent a forced hole
// card, equally likely). A branch where either range is left empty
// contributes zero.
func (br *BestResponse) chanceNode(node *tree.Node, brPlayer int, reach [2][]float64, board uint64, chanceReach float64) ([]float64, error) {
	n := len(node.Outcomes)
	brHands := len(reach[brPlayer])
	out := make([]float64, brHands)
	if n == 0 {
		return out, nil
	}

	rangeByPlayer := [2]ranges.Range{br.rangeMgr.Range(0), br.rangeMgr.Range(1)}
	nextChanceReach := chanceReach / float64(n)

	for _, outcome := range node.Outcomes {
		dealtMask := cards.CardsToMask(outcome.DealtCards)
		newBoard := board | dealtMask

		var nextReach [2][]float64
		var possible [2]bool
		for p := 0; p < 2; p++ {
			nextReach[p], possible[p] = zeroAndRenormalizeChecked(reach[p], rangeByPlayer[p], dealtMask)
		}
		if !possible[0] || !possible[1] {
			continue
		}

		childVal, err := br.nodeValue(outcome.Child, brPlayer, nextReach, newBoard, nextChanceReach)
		if err != nil {
			return nil, err
		}
		for h := range out {
			out[h] += childVal[h]
		}
	}
	return out, nil
}

// zeroAndRenormalizeChecked behaves like zeroAndRenormalize but also
// reports whether any combo survived, so a chance branch that empties a
// range can be short-circuited to zero EV rather than renormalizing
// nothing.
func zeroAndRenormalizeChecked(reach []float64, rng ranges.Range, blockMask uint64) ([]float64, bool) {
	out := make([]float64, len(reach))
	var sum float64
	any := false
	for h, combo := range rng {
		if combo.ConflictsWith(blockMask) {
			continue
		}
		out[h] = reach[h]
		if out[h] > epsilon {
			any = true
		}
		sum += out[h]
	}
	if sum > epsilon {
		for h := range out {
			out[h] /= sum
		}
	} else {
		for h := range out {
			out[h] = 0
		}
	}
	return out, any
}

// terminalNode implements the O(range) per-card blocker-sum trick: for
// each best-responder hand, the opponent's total reach is reduced by the
// reach mass blocked by either of the hand's two cards, then the mass
// double-subtracted when the opponent could hold the identical combo is
// added back once.
func (br *BestResponse) terminalNode(node *tree.Node, brPlayer int, reach [2][]float64, board uint64, chanceReach float64) ([]float64, error) {
	opponent := 1 - brPlayer
	brRange := br.rangeMgr.Range(brPlayer)
	oppRange := br.rangeMgr.Range(opponent)
	oppReach := reach[opponent]
	payoff := node.Payoff[brPlayer]

	var oppTotal float64
	var perCard [52]float64
	for h, combo := range oppRange {
		if combo.ConflictsWith(board) {
			continue
		}
		oppTotal += oppReach[h]
		perCard[int(combo.Card1)] += oppReach[h]
		perCard[int(combo.Card2)] += oppReach[h]
	}

	out := make([]float64, len(brRange))
	for h, combo := range brRange {
		if combo.ConflictsWith(board) {
			out[h] = 0
			continue
		}
		nonBlocked := oppTotal - perCard[int(combo.Card1)] - perCard[int(combo.Card2)]
		if idx, ok := br.rangeMgr.OpponentHandIndex(brPlayer, opponent, h); ok {
			nonBlocked += oppReach[idx]
		}
		if nonBlocked < 0 {
			nonBlocked = 0
		}
		out[h] = chanceReach * payoff * nonBlocked
	}
	return out, nil
}

// showdownNode implements the sweep-line showdown EV: river combos are
// sorted worst-first, an ascending sweep accumulates opponent reach (and
// per-card blocker sums) for hands the best responder beats, a descending
// sweep does the same for hands that beat the best responder, and ties
// fall back to an O(N*M) scan since equal-rank runs are short in
// practice.
func (br *BestResponse) showdownNode(node *tree.Node, brPlayer int, reach [2][]float64, board uint64, chanceReach float64) ([]float64, error) {
	opponent := 1 - brPlayer
	brInitial := br.rangeMgr.Range(brPlayer)
	oppInitial := br.rangeMgr.Range(opponent)

	brCombos, err := br.riverCache.GetRiverCombos(brPlayer, brInitial, board)
	if err != nil {
		return nil, err
	}
	oppCombos, err := br.riverCache.GetRiverCombos(opponent, oppInitial, board)
	if err != nil {
		return nil, err
	}

	payoffWin := node.PayoffPlayer0Wins[brPlayer]
	payoffLose := node.PayoffPlayer1Wins[brPlayer]
	if brPlayer == 1 {
		payoffWin = node.PayoffPlayer1Wins[brPlayer]
		payoffLose = node.PayoffPlayer0Wins[brPlayer]
	}
	payoffTie := node.PayoffTie[brPlayer]

	oppReach := reach[opponent]
	out := make([]float64, len(brInitial))

	// Ascending sweep: accumulate opponent combos the best responder beats
	// (oppCombos sorted worst-first, so a lower index means a weaker hand
	// i.e. a larger Rank number; the best responder beats opponent combos
	// with strictly larger Rank, which appear earlier in this ordering).
	var winSum float64
	var winPerCard [52]float64
	oppIdx := 0
	for _, bc := range brCombos {
		for oppIdx < len(oppCombos) && bc.Rank < oppCombos[oppIdx].Rank {
			oc := oppCombos[oppIdx]
			p := oppReach[oc.InitalIndex]
			winSum += p
			winPerCard[int(oc.Combo.Card1)] += p
			winPerCard[int(oc.Combo.Card2)] += p
			oppIdx++
		}
		winReach := winSum - winPerCard[int(bc.Combo.Card1)] - winPerCard[int(bc.Combo.Card2)]
		if winReach < 0 {
			winReach = 0
		}
		out[bc.InitalIndex] = winReach * payoffWin
	}

	// Descending sweep: accumulate opponent combos that beat the best
	// responder (strictly smaller Rank, appearing later in the
	// worst-first ordering).
	var loseSum float64
	var losePerCard [52]float64
	oppIdx = len(oppCombos)
	for i := len(brCombos) - 1; i >= 0; i-- {
		bc := brCombos[i]
		for oppIdx > 0 && bc.Rank > oppCombos[oppIdx-1].Rank {
			oppIdx--
			oc := oppCombos[oppIdx]
			p := oppReach[oc.InitalIndex]
			loseSum += p
			losePerCard[int(oc.Combo.Card1)] += p
			losePerCard[int(oc.Combo.Card2)] += p
		}
		loseReach := loseSum - losePerCard[int(bc.Combo.Card1)] - losePerCard[int(bc.Combo.Card2)]
		if loseReach < 0 {
			loseReach = 0
		}
		out[bc.InitalIndex] += loseReach * payoffLose

		var tieSum float64
		for _, oc := range oppCombos {
			if oc.Rank != bc.Rank {
				continue
			}
			if cards.Overlaps(bc.Combo.Mask(), oc.Combo.Mask()) {
				continue
			}
			tieSum += oppReach[oc.InitalIndex]
		}
		out[bc.InitalIndex] += tieSum * payoffTie
	}

	for h := range out {
		out[h] *= chanceReach
	}
	return out, nil
}
