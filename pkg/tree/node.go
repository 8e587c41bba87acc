package tree

import (
	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/trainable"
)

// Kind tags which of the four node shapes a Node holds.
type Kind uint8

const (
	ActionNode Kind = iota
	ChanceNode
	ShowdownNode
	TerminalNode
)

// ChanceOutcome is one specific card-dealing outcome of a chance node: the
// dealt card(s) and the single child subtree reached by that deal.
type ChanceOutcome struct {
	DealtCards []cards.Card
	Child      *Node
}

// Node is a tagged-variant game-tree node. Fields are grouped by which
// Kind populates them; the solver dispatches on Kind.
type Node struct {
	Kind   Kind
	Round  Round
	Pot    float64
	Parent *Node

	Depth       int
	SubtreeSize int

	// ActionNode fields.
	Player    int
	Actions   []Action
	Children  []*Node
	RangeSize int
	trainable *trainable.DCFRTrainable

	// ChanceNode fields. A chance node enumerates every card-set outcome
	// compatible with the board in effect at its parent; each outcome
	// carries its own dealt card(s) and exactly one child, per the data
	// model. DonkOpportunity applies to the whole step: it is true on every
	// chance node that opens a new street onto OOP's action, which is by
	// definition a donk spot (OOP acts first on every new street), and false
	// on all-in runout chance nodes, which no action follows.
	Outcomes        []ChanceOutcome
	DonkOpportunity bool

	// ShowdownNode fields: payoff to [player0, player1] under each outcome.
	PayoffPlayer0Wins [2]float64
	PayoffPlayer1Wins [2]float64
	PayoffTie         [2]float64

	// TerminalNode fields (fold): payoff to [player0, player1].
	Payoff [2]float64
}

// NewActionNode builds an action node for seat player with rangeSize
// hands in that player's range. The Trainable table is allocated lazily
// on first call to Trainable.
func NewActionNode(round Round, pot float64, player int, actions []Action, children []*Node, rangeSize int) *Node {
	n := &Node{
		Kind:      ActionNode,
		Round:     round,
		Pot:       pot,
		Player:    player,
		Actions:   actions,
		Children:  children,
		RangeSize: rangeSize,
	}
	for _, c := range children {
		c.Parent = n
	}
	return n
}

// Trainable returns the node's DCFR table, allocating it on first access.
func (n *Node) Trainable() *trainable.DCFRTrainable {
	if n.trainable == nil {
		n.trainable = trainable.New(len(n.Actions), n.RangeSize)
	}
	return n.trainable
}

// NewChanceNode builds a chance node from its enumerated outcomes.
func NewChanceNode(round Round, pot float64, outcomes []ChanceOutcome, donkOpportunity bool) *Node {
	n := &Node{
		Kind:            ChanceNode,
		Round:           round,
		Pot:             pot,
		Outcomes:        outcomes,
		DonkOpportunity: donkOpportunity,
	}
	for _, o := range outcomes {
		o.Child.Parent = n
	}
	return n
}

// NewShowdownNode builds a showdown node with precomputed payoff vectors
// for each possible outcome.
func NewShowdownNode(round Round, pot float64, p0Wins, p1Wins, tie [2]float64) *Node {
	return &Node{
		Kind:              ShowdownNode,
		Round:             round,
		Pot:               pot,
		PayoffPlayer0Wins: p0Wins,
		PayoffPlayer1Wins: p1Wins,
		PayoffTie:         tie,
	}
}

// NewTerminalNode builds a fold-terminal node with a fixed payoff vector.
func NewTerminalNode(round Round, pot float64, payoff [2]float64) *Node {
	return &Node{
		Kind:   TerminalNode,
		Round:  round,
		Pot:    pot,
		Payoff: payoff,
	}
}

// AssignMetadata computes Depth and SubtreeSize for every node reachable
// from root via a post-order traversal.
func AssignMetadata(root *Node) {
	assignMetadata(root, 0)
}

func assignMetadata(n *Node, depth int) int {
	n.Depth = depth
	size := 1
	switch n.Kind {
	case ActionNode:
		for _, c := range n.Children {
			size += assignMetadata(c, depth+1)
		}
	case ChanceNode:
		for _, o := range n.Outcomes {
			size += assignMetadata(o.Child, depth+1)
		}
	}
	n.SubtreeSize = size
	return size
}

// MemoryEstimate sums, over every action node, actions * rangeSize *
// bytesPerEntry (regret + strategy-sum + EV scalars, 8 bytes each).
func MemoryEstimate(root *Node) int64 {
	const bytesPerEntry = 3 * 8
	var total int64
	var walk func(*Node)
	walk = func(n *Node) {
		switch n.Kind {
		case ActionNode:
			total += int64(len(n.Actions)) * int64(n.RangeSize) * bytesPerEntry
			for _, c := range n.Children {
				walk(c)
			}
		case ChanceNode:
			for _, o := range n.Outcomes {
				walk(o.Child)
			}
		}
	}
	walk(root)
	return total
}
