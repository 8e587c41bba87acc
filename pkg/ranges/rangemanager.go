package ranges

// Manager exposes per-player ranges, cross-player hand-index lookups, and
// blocker-aware initial reach probabilities for a fixed initial board. It
// is read-only after construction.
type Manager struct {
	ranges     [2]Range
	boardMask  uint64
	reachProbs [2][]float64
}

// NewManager builds a Manager for both players' initial ranges and the
// starting board mask, precomputing initial reach probabilities.
func NewManager(range0, range1 Range, boardMask uint64) *Manager {
	m := &Manager{ranges: [2]Range{range0, range1}, boardMask: boardMask}
	m.reachProbs[0] = m.computeReach(0, 1)
	m.reachProbs[1] = m.computeReach(1, 0)
	return m
}

// Range returns player p's initial range (0 or 1).
func (m *Manager) Range(p int) Range {
	return m.ranges[p]
}

// BoardMask returns the initial board mask this manager was built for.
func (m *Manager) BoardMask() uint64 {
	return m.boardMask
}

// OpponentHandIndex maps a combo at fromIndex in fromPlayer's range to the
// index of the identical-content combo in toPlayer's range, identified by
// card hash rather than position.
func (m *Manager) OpponentHandIndex(fromPlayer, toPlayer, fromIndex int) (int, bool) {
	combo := m.ranges[fromPlayer][fromIndex]
	idx := m.ranges[toPlayer].IndexOf(combo)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// InitialReachProbs returns player p's normalized P(H_p | Board) vector,
// summing to 1.0 whenever at least one combo survives blocking.
func (m *Manager) InitialReachProbs(p int) []float64 {
	return m.reachProbs[p]
}

// computeReach computes P(H_player | board): for each hand h, relative weight
// is weight(h) times the sum of opponent weights for combos that conflict
// with neither the board nor h. The resulting vector is normalized to 1.
func (m *Manager) computeReach(player, opponent int) []float64 {
	hand := m.ranges[player]
	opp := m.ranges[opponent]

	rel := make([]float64, len(hand))
	total := 0.0
	for i, h := range hand {
		if h.ConflictsWith(m.boardMask) {
			continue
		}
		oppWeightSum := 0.0
		for _, o := range opp {
			if o.ConflictsWith(m.boardMask) || o.ConflictsWith(h.Mask()) {
				continue
			}
			oppWeightSum += o.Weight
		}
		rel[i] = h.Weight * oppWeightSum
		total += rel[i]
	}

	if total <= 0 {
		return rel // all zero: range empty of non-blocked combos
	}
	for i := range rel {
		rel[i] /= total
	}
	return rel
}
