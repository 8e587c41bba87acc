package solver

import (
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

// EVs returns the per-hand per-action expected values recorded at node
// during training, keyed by hand string, or nil when the solver was not
// constructed with WithEVRecording (or the node was never visited). The
// result shape matches what a strategy dump embeds alongside the average
// strategy.
func (s *Solver) EVs(node *tree.Node) map[string][]float64 {
	if !s.recordEVs || node.Kind != tree.ActionNode {
		return nil
	}
	flat := node.Trainable().EVs()
	if flat == nil {
		return nil
	}

	hands := s.rangeMgr.Range(node.Player)
	numHands := node.RangeSize
	numActions := len(node.Actions)

	out := make(map[string][]float64, numHands)
	for h := 0; h < numHands; h++ {
		row := make([]float64, numActions)
		for a := 0; a < numActions; a++ {
			row[a] = flat[a*numHands+h]
		}
		out[hands[h].String()] = row
	}
	return out
}
