// Package dump walks a built/trained game tree into the strategy-dump
// JSON document: a tree of tagged node objects keyed by the
// action-string leading to each child, with average strategies read from
// each action node's DCFRTrainable table.
package dump

import (
	"encoding/json"
	"os"

	"github.com/ehrlich-postflop/solver-core/pkg/apperr"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

// StrategyData carries an action node's action list and its average
// strategy, keyed per hand string.
type StrategyData struct {
	Actions  []string             `json:"actions"`
	Strategy map[string][]float64 `json:"strategy"`
	EVs      map[string][]float64 `json:"evs,omitempty"`
}

// Node mirrors the strategy-dump JSON object. Fields are grouped by which
// node_type populates them, same as tree.Node.
type Node struct {
	NodeType string  `json:"node_type"`
	Round    string  `json:"round"`
	Pot      float64 `json:"pot"`
	Depth    int     `json:"depth"`

	// Action
	Player       *int             `json:"player,omitempty"`
	StrategyData *StrategyData    `json:"strategy_data,omitempty"`
	Children     map[string]*Node `json:"children,omitempty"`

	// Chance
	DealtCards      []string `json:"dealt_cards,omitempty"`
	DonkOpportunity *bool    `json:"donk_opportunity,omitempty"`
	Child           *Node    `json:"child,omitempty"`

	// Showdown
	PayoffsPlayer0Wins []float64 `json:"payoffs_player0_wins,omitempty"`
	PayoffsPlayer1Wins []float64 `json:"payoffs_player1_wins,omitempty"`
	PayoffsTie         []float64 `json:"payoffs_tie,omitempty"`

	// Terminal
	Payoffs []float64 `json:"payoffs,omitempty"`
}

// EVProvider supplies optional per-hand-per-action EVs for an action
// node, keyed by hand string like the strategy map (*solver.Solver
// implements it). Dumps that don't need evs pass a nil EVProvider.
type EVProvider interface {
	EVs(node *tree.Node) map[string][]float64
}

// Build walks root into the strategy-dump tree, pruning recursion below
// maxDepth (maxDepth < 0 means unlimited). rangeMgr supplies the hand
// strings for each seat's strategy map.
func Build(root *tree.Node, rangeMgr *ranges.Manager, maxDepth int, evs EVProvider) *Node {
	return build(root, rangeMgr, maxDepth, evs)
}

func build(n *tree.Node, rangeMgr *ranges.Manager, maxDepth int, evs EVProvider) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Round: n.Round.String(),
		Pot:   n.Pot,
		Depth: n.Depth,
	}

	switch n.Kind {
	case tree.ActionNode:
		out.NodeType = "Action"
		player := n.Player
		out.Player = &player
		if maxDepth < 0 || n.Depth < maxDepth {
			out.StrategyData = buildStrategyData(n, rangeMgr, evs)
			out.Children = make(map[string]*Node, len(n.Actions))
			for i, action := range n.Actions {
				out.Children[action.String()] = build(n.Children[i], rangeMgr, maxDepth, evs)
			}
		}
	case tree.ChanceNode:
		out.NodeType = "Chance"
		donk := n.DonkOpportunity
		out.DonkOpportunity = &donk
		if maxDepth < 0 || n.Depth < maxDepth {
			if len(n.Outcomes) > 0 {
				dealt := make([]string, len(n.Outcomes[0].DealtCards))
				for i, c := range n.Outcomes[0].DealtCards {
					dealt[i] = c.String()
				}
				out.DealtCards = dealt
				out.Child = build(n.Outcomes[0].Child, rangeMgr, maxDepth, evs)
			}
		}
	case tree.ShowdownNode:
		out.NodeType = "Showdown"
		out.PayoffsPlayer0Wins = n.PayoffPlayer0Wins[:]
		out.PayoffsPlayer1Wins = n.PayoffPlayer1Wins[:]
		out.PayoffsTie = n.PayoffTie[:]
	default: // tree.TerminalNode
		out.NodeType = "Terminal"
		out.Payoffs = n.Payoff[:]
	}

	return out
}

func buildStrategyData(n *tree.Node, rangeMgr *ranges.Manager, evs EVProvider) *StrategyData {
	actionStrs := make([]string, len(n.Actions))
	for i, a := range n.Actions {
		actionStrs[i] = a.String()
	}

	sigma := n.Trainable().AverageStrategy()
	hands := rangeMgr.Range(n.Player)
	numHands := n.RangeSize

	strategy := make(map[string][]float64, numHands)
	for h := 0; h < numHands; h++ {
		key := hands[h].String()
		row := make([]float64, len(n.Actions))
		for a := range n.Actions {
			row[a] = sigma[a*numHands+h]
		}
		strategy[key] = row
	}

	data := &StrategyData{Actions: actionStrs, Strategy: strategy}
	if evs != nil {
		if m := evs.EVs(n); m != nil {
			data.EVs = m
		}
	}
	return data
}

// Write builds the strategy dump for root and writes it as indented JSON
// to path.
func Write(path string, root *tree.Node, rangeMgr *ranges.Manager, maxDepth int, evs EVProvider) error {
	doc := Build(root, rangeMgr, maxDepth, evs)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Logic, "marshaling strategy dump", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.Resource, "writing strategy dump file", err)
	}
	return nil
}
