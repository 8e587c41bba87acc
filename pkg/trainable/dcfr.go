// Package trainable implements the per-action-node DCFR regret and
// strategy-sum tables.
package trainable

import "math"

// Discounted-CFR constants (Brown & Sandholm 2019).
const (
	alpha = 1.5
	beta  = 0.5
	gamma = 2.0
)

// Trainable is the per-action-node state a CFR-style solver drives. Only
// one implementation exists today; the interface keeps copy/serialization
// logic swappable if another regret scheme is added.
type Trainable interface {
	CurrentStrategy() []float64
	AverageStrategy() []float64
	UpdateRegrets(t int, rho []float64, w float64)
	AccumulateStrategy(t int, sigma, reach []float64)
}

var _ Trainable = (*DCFRTrainable)(nil)

// DCFRTrainable stores cumulative regret and strategy-sum tables for one
// action node, laid out as dense [actions*hands] arrays indexed
// a*hands+h. It is not safe for concurrent writers on the same node; the
// solver serializes updates per node by construction.
type DCFRTrainable struct {
	actions int
	hands   int

	regretSum   []float64
	strategySum []float64
	evs         []float64

	currentStrategy []float64
	currentValid    bool

	averageStrategy []float64
	averageValid    bool
}

// New allocates a Trainable for the given action and hand counts, with all
// tables zeroed.
func New(actions, hands int) *DCFRTrainable {
	return &DCFRTrainable{
		actions:     actions,
		hands:       hands,
		regretSum:   make([]float64, actions*hands),
		strategySum: make([]float64, actions*hands),
	}
}

// Actions returns the number of actions this table is sized for.
func (tr *DCFRTrainable) Actions() int { return tr.actions }

// Hands returns the number of hands (range size) this table is sized for.
func (tr *DCFRTrainable) Hands() int { return tr.hands }

func (tr *DCFRTrainable) idx(a, h int) int { return a*tr.hands + h }

// CurrentStrategy returns σ via regret-matching+: for each hand, positive
// regrets are normalized to sum 1; hands with no positive regret get the
// uniform distribution. The result is cached until the next regret update.
func (tr *DCFRTrainable) CurrentStrategy() []float64 {
	if tr.currentValid {
		return tr.currentStrategy
	}
	if tr.currentStrategy == nil {
		tr.currentStrategy = make([]float64, tr.actions*tr.hands)
	}
	for h := 0; h < tr.hands; h++ {
		sum := 0.0
		for a := 0; a < tr.actions; a++ {
			r := tr.regretSum[tr.idx(a, h)]
			if r > 0 {
				sum += r
			}
		}
		for a := 0; a < tr.actions; a++ {
			i := tr.idx(a, h)
			if sum > 0 {
				r := tr.regretSum[i]
				if r < 0 {
					r = 0
				}
				tr.currentStrategy[i] = r / sum
			} else {
				tr.currentStrategy[i] = 1.0 / float64(tr.actions)
			}
		}
	}
	tr.currentValid = true
	return tr.currentStrategy
}

// UpdateRegrets applies the discounted regret update at iteration t given
// the pre-weighted per-action-per-hand immediate regret vector rho
// (length actions*hands). w is accepted for bookkeeping/logging only and
// is not rescaled into the stored regrets (it is embedded in rho already).
func (tr *DCFRTrainable) UpdateRegrets(t int, rho []float64, w float64) {
	_ = w
	tPos := math.Pow(float64(t), alpha)
	posDiscount := tPos / (tPos + 1)
	tNeg := math.Pow(float64(t), beta)
	negDiscount := tNeg / (tNeg + 1)

	for i, prior := range tr.regretSum {
		var discount float64
		if prior > 0 {
			discount = posDiscount
		} else {
			discount = negDiscount
		}
		tr.regretSum[i] = prior*discount + rho[i]
	}
	tr.currentValid = false
}

// AccumulateStrategy adds this iteration's contribution to the strategy
// sum: S[a,h] += sigma[a,h] * reach[h] * (t/(t+1))^gamma.
func (tr *DCFRTrainable) AccumulateStrategy(t int, sigma []float64, reach []float64) {
	weight := math.Pow(float64(t)/float64(t+1), gamma)
	for a := 0; a < tr.actions; a++ {
		for h := 0; h < tr.hands; h++ {
			i := tr.idx(a, h)
			tr.strategySum[i] += sigma[i] * reach[h] * weight
		}
	}
	tr.averageValid = false
}

// AverageStrategy normalizes the accumulated strategy sum per hand; hands
// with zero accumulated mass get the uniform distribution. Cached until
// the next AccumulateStrategy call.
func (tr *DCFRTrainable) AverageStrategy() []float64 {
	if tr.averageValid {
		return tr.averageStrategy
	}
	if tr.averageStrategy == nil {
		tr.averageStrategy = make([]float64, tr.actions*tr.hands)
	}
	for h := 0; h < tr.hands; h++ {
		sum := 0.0
		for a := 0; a < tr.actions; a++ {
			sum += tr.strategySum[tr.idx(a, h)]
		}
		for a := 0; a < tr.actions; a++ {
			i := tr.idx(a, h)
			if sum > 0 {
				tr.averageStrategy[i] = tr.strategySum[i] / sum
			} else {
				tr.averageStrategy[i] = 1.0 / float64(tr.actions)
			}
		}
	}
	tr.averageValid = true
	return tr.averageStrategy
}

// SetEVs stores the latest per-action-per-hand expected values. The slice
// is copied; allocation happens on first use since most solves never ask
// for EVs.
func (tr *DCFRTrainable) SetEVs(evs []float64) {
	if tr.evs == nil {
		tr.evs = make([]float64, tr.actions*tr.hands)
	}
	copy(tr.evs, evs)
}

// EVs returns the stored expected-value table, or nil if none was recorded.
func (tr *DCFRTrainable) EVs() []float64 {
	return tr.evs
}

// CopyFrom transfers the regret, strategy-sum, and EV tables from other,
// invalidating caches. It is only legal when action and hand counts match.
func (tr *DCFRTrainable) CopyFrom(other *DCFRTrainable) error {
	if tr.actions != other.actions || tr.hands != other.hands {
		return errMismatch(tr.actions, tr.hands, other.actions, other.hands)
	}
	copy(tr.regretSum, other.regretSum)
	copy(tr.strategySum, other.strategySum)
	if other.evs != nil {
		tr.SetEVs(other.evs)
	}
	tr.currentValid = false
	tr.averageValid = false
	return nil
}
