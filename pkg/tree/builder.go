package tree

import (
	"fmt"
	"math"
	"sort"

	"github.com/ehrlich-postflop/solver-core/pkg/apperr"
	"github.com/ehrlich-postflop/solver-core/pkg/cards"
)

const allInEpsilon = 1e-9

// buildState carries the recursion state threaded through action-node
// construction: the pot is always recomputed from commit, never stored.
type buildState struct {
	round               Round
	commit              [2]float64
	boardMask           uint64
	checksThisStreet    int
	raisesThisStreet    int
	firstActionOfStreet bool
}

// Build constructs the full game tree for rule. ipRangeSize and
// oopRangeSize size the Trainable tables lazily allocated at action
// nodes for each seat. The root is an action node at the starting round
// with OOP to act, per convention.
func Build(rule Rule, ipRangeSize, oopRangeSize int) (*Node, error) {
	if rule.StartingRound == Preflop {
		return nil, apperr.New(apperr.Invariant, "preflop dynamic bet enumeration is not supported, bring a pre-built preflop subtree")
	}

	rangeSizes := [2]int{ipRangeSize, oopRangeSize}
	root, err := buildAction(rule, rangeSizes, OOP, buildState{
		round:               rule.StartingRound,
		commit:              [2]float64{rule.InitialCommitment.IP, rule.InitialCommitment.OOP},
		boardMask:           rule.InitialBoardMask,
		firstActionOfStreet: true,
	})
	if err != nil {
		return nil, err
	}
	AssignMetadata(root)
	return root, nil
}

func isAllIn(rule Rule, remain float64) bool {
	return remain <= rule.AllInThresholdRatio*rule.EffectiveStack+allInEpsilon
}

func buildAction(rule Rule, rangeSizes [2]int, acting int, st buildState) (*Node, error) {
	other := 1 - acting
	commitActing := st.commit[acting]
	commitOther := st.commit[other]
	remainActing := rule.EffectiveStack - commitActing
	remainOther := rule.EffectiveStack - commitOther

	canCheck := math.Abs(commitActing-commitOther) < allInEpsilon
	canCall := commitOther > commitActing+allInEpsilon
	canFold := canCall
	facingBet := canCall
	canBetRaise := !isAllIn(rule, remainOther) && remainActing > rule.BigBlind+allInEpsilon && st.raisesThisStreet < rule.RaiseCapPerStreet

	var actions []Action
	var children []*Node

	if canCheck {
		var child *Node
		var err error
		if st.checksThisStreet >= 1 {
			child, err = buildRoundClose(rule, rangeSizes, st.commit, st.boardMask, st.round)
		} else {
			child, err = buildAction(rule, rangeSizes, other, buildState{
				round:            st.round,
				commit:           st.commit,
				boardMask:        st.boardMask,
				checksThisStreet: st.checksThisStreet + 1,
				raisesThisStreet: st.raisesThisStreet,
			})
		}
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{Type: Check})
		children = append(children, child)
	}

	if canCall {
		newCommit := st.commit
		newCommit[acting] = math.Min(commitOther, rule.EffectiveStack)

		var child *Node
		var err error
		switch {
		case st.round == River:
			child = buildShowdown(st.round, newCommit)
		case isAllIn(rule, rule.EffectiveStack-newCommit[acting]) || isAllIn(rule, rule.EffectiveStack-newCommit[other]):
			child, err = buildRunoutToShowdown(rule, rangeSizes, newCommit, st.boardMask, st.round+1)
		default:
			child, err = buildChance(rule, rangeSizes, newCommit, st.boardMask, st.round+1)
		}
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{Type: Call})
		children = append(children, child)
	}

	if canFold {
		var payoff [2]float64
		payoff[acting] = -commitActing
		payoff[other] = commitActing
		actions = append(actions, Action{Type: Fold})
		children = append(children, NewTerminalNode(st.round, st.commit[0]+st.commit[1], payoff))
	}

	if canBetRaise {
		setting := rule.Setting(st.round, acting)
		var sizes []float64
		switch {
		case facingBet:
			sizes = setting.RaiseSizesPercent
		case acting == OOP && st.firstActionOfStreet:
			sizes = setting.DonkSizesPercent
		default:
			sizes = setting.BetSizesPercent
		}

		amounts := computeBetRaiseAmounts(rule, st.commit, acting, facingBet, sizes, setting.AllowAllIn)
		for _, amt := range amounts {
			actionType := Bet
			if facingBet {
				actionType = Raise
			}
			newCommit := st.commit
			newCommit[acting] = commitActing + amt
			raisesNext := st.raisesThisStreet
			if facingBet {
				raisesNext++
			}
			child, err := buildAction(rule, rangeSizes, other, buildState{
				round:            st.round,
				commit:           newCommit,
				boardMask:        st.boardMask,
				raisesThisStreet: raisesNext,
			})
			if err != nil {
				return nil, err
			}
			actions = append(actions, Action{Type: actionType, Amount: amt})
			children = append(children, child)
		}
	}

	if len(actions) == 0 {
		return nil, apperr.New(apperr.Invariant, fmt.Sprintf("no legal actions at round %v, commit=%v", st.round, st.commit))
	}

	return NewActionNode(st.round, st.commit[0]+st.commit[1], acting, actions, children, rangeSizes[acting]), nil
}

// computeBetRaiseAmounts applies the bet/raise sizing formula: bets are a
// pot percentage floored at the big blind; raises are a percentage
// top-up over the call amount floored at max(big blind, call amount).
// All sizes round to the nearest small blind, dedup, and cap at the
// acting player's remaining stack; the all-in size is added when
// allowAllIn is set and not already present.
func computeBetRaiseAmounts(rule Rule, commit [2]float64, acting int, facingBet bool, sizesPercent []float64, allowAllIn bool) []float64 {
	commitActing := commit[acting]
	commitOther := commit[1-acting]
	remain := rule.EffectiveStack - commitActing
	potBefore := commit[0] + commit[1]

	seen := make(map[float64]bool)
	var out []float64
	add := func(amt float64) {
		if amt <= 0 {
			return
		}
		if amt > remain {
			amt = remain
		}
		if seen[amt] {
			return
		}
		seen[amt] = true
		out = append(out, amt)
	}

	for _, r := range sizesPercent {
		var amt float64
		if facingBet {
			callAmount := commitOther - commitActing
			topUp := roundToNearest(r/100*(potBefore+callAmount), rule.SmallBlind)
			minTopUp := math.Max(rule.BigBlind, callAmount)
			if topUp < minTopUp {
				topUp = minTopUp
			}
			amt = callAmount + topUp
		} else {
			amt = roundToNearest(r/100*potBefore, rule.SmallBlind)
			if amt < rule.BigBlind {
				amt = rule.BigBlind
			}
		}
		add(amt)
	}

	if allowAllIn {
		add(remain)
	}

	sort.Float64s(out)
	return out
}

func roundToNearest(x, unit float64) float64 {
	if unit <= 0 {
		return x
	}
	return math.Round(x/unit) * unit
}

// buildRoundClose is reached when a street's betting ends via check-check
// (or the equivalent). River closes to showdown; earlier streets deal the
// next round's cards.
func buildRoundClose(rule Rule, rangeSizes [2]int, commit [2]float64, boardMask uint64, round Round) (*Node, error) {
	if round == River {
		return buildShowdown(round, commit), nil
	}
	return buildChance(rule, rangeSizes, commit, boardMask, round+1)
}

// buildRunoutToShowdown handles a call that puts a player all-in before
// the river: remaining streets are dealt with no further betting.
func buildRunoutToShowdown(rule Rule, rangeSizes [2]int, commit [2]float64, boardMask uint64, round Round) (*Node, error) {
	outcomes, err := enumerateChanceOutcomes(boardMask, round, func(newBoard uint64) (*Node, error) {
		if round == River {
			return buildShowdown(round, commit), nil
		}
		return buildRunoutToShowdown(rule, rangeSizes, commit, newBoard, round+1)
	})
	if err != nil {
		return nil, err
	}
	return NewChanceNode(round, commit[0]+commit[1], outcomes, false), nil
}

// buildChance deals round's cards and opens the new street with OOP to
// act, per convention every new street opens onto a donk opportunity.
func buildChance(rule Rule, rangeSizes [2]int, commit [2]float64, boardMask uint64, round Round) (*Node, error) {
	outcomes, err := enumerateChanceOutcomes(boardMask, round, func(newBoard uint64) (*Node, error) {
		return buildAction(rule, rangeSizes, OOP, buildState{
			round:               round,
			commit:              commit,
			boardMask:           newBoard,
			firstActionOfStreet: true,
		})
	})
	if err != nil {
		return nil, err
	}
	return NewChanceNode(round, commit[0]+commit[1], outcomes, true), nil
}

func enumerateChanceOutcomes(boardMask uint64, round Round, childFn func(newBoardMask uint64) (*Node, error)) ([]ChanceOutcome, error) {
	k := dealCountForRound(round)
	remaining := cards.MaskToCards(cards.RemainingMask(boardMask))

	var outcomes []ChanceOutcome
	var outerErr error
	forEachKSubset(remaining, k, func(dealt []cards.Card) {
		if outerErr != nil {
			return
		}
		dealtCopy := append([]cards.Card(nil), dealt...)
		newBoard := boardMask | cards.CardsToMask(dealtCopy)
		child, err := childFn(newBoard)
		if err != nil {
			outerErr = err
			return
		}
		outcomes = append(outcomes, ChanceOutcome{DealtCards: dealtCopy, Child: child})
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return outcomes, nil
}

// buildShowdown builds a showdown node for equal commitments: the winner
// nets the opponent's commitment, the loser nets minus their own
// commitment, and a tie nets zero for both.
func buildShowdown(round Round, commit [2]float64) *Node {
	pot := commit[0] + commit[1]
	p0Wins := [2]float64{commit[1], -commit[1]}
	p1Wins := [2]float64{-commit[0], commit[0]}
	tie := [2]float64{0, 0}
	return NewShowdownNode(round, pot, p0Wins, p1Wins, tie)
}
