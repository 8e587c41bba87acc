// Package solver implements the DCFR training loop and the best
// response / exploitability calculation that both traverse the shared
// game tree built by pkg/tree.
package solver

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

// epsilon is the pruning threshold: a branch whose traverser reach
// sums below this is skipped, returning a zero utility vector.
const epsilon = 1e-12

// defaultParallelThreshold is the branching-factor*subtree-size product
// above which a chance node's outcomes are dispatched to worker
// goroutines.
const defaultParallelThreshold = 100_000

// Solver runs Discounted CFR over a pre-built tree, sharing the Range
// Manager and River Cache with any BestResponse calculation over the same
// tree.
type Solver struct {
	root       *tree.Node
	rangeMgr   *ranges.Manager
	riverCache *ranges.RiverCache

	workers           int
	parallelThreshold int
	recordEVs         bool
	clock             quartz.Clock

	mu        sync.Mutex
	iteration int
	stopped   bool
}

// Option configures a Solver at construction.
type Option func(*Solver)

// WithWorkers sets the worker count used for chance-node fan-out
// (default 1, meaning single-threaded CFR).
func WithWorkers(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithParallelThreshold overrides the branching-factor*subtree-size
// product above which chance outcomes run concurrently.
func WithParallelThreshold(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.parallelThreshold = n
		}
	}
}

// WithEVRecording makes every traverser-side action-node visit store its
// per-action expected values into the node's Trainable, so a later
// strategy dump can include them.
func WithEVRecording(on bool) Option {
	return func(s *Solver) {
		s.recordEVs = on
	}
}

// WithClock overrides the wall-clock source used by TrainFor (tests inject
// quartz.NewMock to fast-forward deterministically).
func WithClock(c quartz.Clock) Option {
	return func(s *Solver) {
		s.clock = c
	}
}

// New builds a Solver over root, sharing rangeMgr and riverCache with any
// BestResponse calculation performed afterward.
func New(root *tree.Node, rangeMgr *ranges.Manager, riverCache *ranges.RiverCache, opts ...Option) *Solver {
	s := &Solver{
		root:              root,
		rangeMgr:          rangeMgr,
		riverCache:        riverCache,
		workers:           1,
		parallelThreshold: defaultParallelThreshold,
		clock:             quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Iterations returns the number of completed DCFR iterations.
func (s *Solver) Iterations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// Stop requests that training halt at the next iteration boundary. Safe
// to call from another goroutine; in-flight iterations are not cancelled
// mid-traversal.
func (s *Solver) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Stopped reports whether Stop has been called.
func (s *Solver) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Train runs up to iterations DCFR iterations, stopping early if Stop is
// called. It returns the number of iterations actually completed.
func (s *Solver) Train(ctx context.Context, iterations int) (int, error) {
	completed := 0
	for i := 0; i < iterations; i++ {
		if s.Stopped() {
			break
		}
		select {
		case <-ctx.Done():
			return completed, ctx.Err()
		default:
		}
		if err := s.Iterate(ctx); err != nil {
			return completed, err
		}
		completed++
	}
	return completed, nil
}

// TrainFor runs DCFR iterations until duration has elapsed on the
// Solver's clock (quartz.NewMock in tests, advanced explicitly) or Stop is
// called, returning the number of iterations completed.
func (s *Solver) TrainFor(ctx context.Context, duration time.Duration) (int, error) {
	deadline := s.clock.Now().Add(duration)
	completed := 0
	for s.clock.Now().Before(deadline) {
		if s.Stopped() {
			break
		}
		select {
		case <-ctx.Done():
			return completed, ctx.Err()
		default:
		}
		if err := s.Iterate(ctx); err != nil {
			return completed, err
		}
		completed++
	}
	return completed, nil
}

// Iterate runs a single DCFR iteration: one traversal with player 0 as
// traverser, one with player 1, sharing the same iteration number t.
// Both traverser passes complete before the iteration counts as done.
func (s *Solver) Iterate(ctx context.Context) error {
	s.mu.Lock()
	s.iteration++
	t := s.iteration
	s.mu.Unlock()

	board := s.rangeMgr.BoardMask()
	for traverser := 0; traverser < 2; traverser++ {
		opponent := 1 - traverser
		piTrav := append([]float64(nil), s.rangeMgr.InitialReachProbs(traverser)...)
		piOpp := append([]float64(nil), s.rangeMgr.InitialReachProbs(opponent)...)
		if _, err := s.cfr(ctx, s.root, piTrav, piOpp, traverser, t, board, 1.0); err != nil {
			return err
		}
	}
	return nil
}

// cfr dispatches on node kind.
func (s *Solver) cfr(ctx context.Context, node *tree.Node, piTrav, piOpp []float64, traverser, t int, board uint64, chanceReach float64) ([]float64, error) {
	switch node.Kind {
	case tree.ActionNode:
		if sumVec(piTrav) < epsilon {
			return make([]float64, len(piTrav)), nil
		}
		if node.Player == traverser {
			return s.cfrTraverserActs(ctx, node, piTrav, piOpp, traverser, t, board, chanceReach)
		}
		return s.cfrOpponentActs(ctx, node, piTrav, piOpp, traverser, t, board, chanceReach)
	case tree.ChanceNode:
		if sumVec(piTrav) < epsilon {
			return make([]float64, len(piTrav)), nil
		}
		return s.cfrChance(ctx, node, piTrav, piOpp, traverser, t, board, chanceReach)
	case tree.ShowdownNode:
		return s.cfrShowdown(node, piTrav, piOpp, traverser, board, chanceReach)
	default: // tree.TerminalNode
		return s.cfrTerminal(node, piTrav, piOpp, traverser, board, chanceReach)
	}
}

func (s *Solver) cfrTraverserActs(ctx context.Context, node *tree.Node, piTrav, piOpp []float64, traverser, t int, board uint64, chanceReach float64) ([]float64, error) {
	tr := node.Trainable()
	sigma := tr.CurrentStrategy()
	hands := len(piTrav)
	numActions := len(node.Actions)

	actionVals := make([][]float64, numActions)
	nodeVal := make([]float64, hands)
	for a, child := range node.Children {
		childPiTrav := make([]float64, hands)
		for h := 0; h < hands; h++ {
			childPiTrav[h] = piTrav[h] * sigma[a*hands+h]
		}
		childVal, err := s.cfr(ctx, child, childPiTrav, piOpp, traverser, t, board, chanceReach)
		if err != nil {
			return nil, err
		}
		actionVals[a] = childVal
		for h := 0; h < hands; h++ {
			nodeVal[h] += sigma[a*hands+h] * childVal[h]
		}
	}

	w := sumVec(piOpp) * chanceReach
	rho := make([]float64, numActions*hands)
	for a := 0; a < numActions; a++ {
		for h := 0; h < hands; h++ {
			rho[a*hands+h] = w * (actionVals[a][h] - nodeVal[h])
		}
	}
	tr.UpdateRegrets(t, rho, w)
	tr.AccumulateStrategy(t, sigma, piTrav)
	if s.recordEVs {
		flat := make([]float64, numActions*hands)
		for a := 0; a < numActions; a++ {
			copy(flat[a*hands:(a+1)*hands], actionVals[a])
		}
		tr.SetEVs(flat)
	}

	return nodeVal, nil
}

func (s *Solver) cfrOpponentActs(ctx context.Context, node *tree.Node, piTrav, piOpp []float64, traverser, t int, board uint64, chanceReach float64) ([]float64, error) {
	tr := node.Trainable()
	sigma := tr.CurrentStrategy()
	oppHands := len(piOpp)
	travHands := len(piTrav)

	nodeVal := make([]float64, travHands)
	for a, child := range node.Children {
		childPiOpp := make([]float64, oppHands)
		for h := 0; h < oppHands; h++ {
			childPiOpp[h] = piOpp[h] * sigma[a*oppHands+h]
		}
		childVal, err := s.cfr(ctx, child, piTrav, childPiOpp, traverser, t, board, chanceReach)
		if err != nil {
			return nil, err
		}
		for h := 0; h < travHands; h++ {
			nodeVal[h] += childVal[h]
		}
	}
	return nodeVal, nil
}

func (s *Solver) cfrChance(ctx context.Context, node *tree.Node, piTrav, piOpp []float64, traverser, t int, board uint64, chanceReach float64) ([]float64, error) {
	n := len(node.Outcomes)
	if n == 0 {
		return make([]float64, len(piTrav)), nil
	}
	rangeTrav := s.rangeMgr.Range(traverser)
	rangeOpp := s.rangeMgr.Range(1 - traverser)
	nextChanceReach := chanceReach / float64(n)

	results := make([][]float64, n)
	runOutcome := func(ctx context.Context, i int) error {
		outcome := node.Outcomes[i]
		dealtMask := cards.CardsToMask(outcome.DealtCards)
		newBoard := board | dealtMask
		newPiTrav := zeroAndRenormalize(piTrav, rangeTrav, dealtMask)
		newPiOpp := zeroAndRenormalize(piOpp, rangeOpp, dealtMask)
		childVal, err := s.cfr(ctx, outcome.Child, newPiTrav, newPiOpp, traverser, t, newBoard, nextChanceReach)
		if err != nil {
			return err
		}
		results[i] = childVal
		return nil
	}

	if s.workers > 1 && n*node.SubtreeSize > s.parallelThreshold {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i := range node.Outcomes {
			i := i
			g.Go(func() error { return runOutcome(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range node.Outcomes {
			if err := runOutcome(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	out := make([]float64, len(piTrav))
	for _, r := range results {
		for h := range out {
			out[h] += r[h]
		}
	}
	return out, nil
}

func (s *Solver) cfrShowdown(node *tree.Node, piTrav, piOpp []float64, traverser int, board uint64, chanceReach float64) ([]float64, error) {
	rangeTrav := s.rangeMgr.Range(traverser)
	rangeOpp := s.rangeMgr.Range(1 - traverser)

	payoffWin := node.PayoffPlayer0Wins[traverser]
	payoffLose := node.PayoffPlayer1Wins[traverser]
	payoffTie := node.PayoffTie[traverser]
	if traverser == 1 {
		payoffWin = node.PayoffPlayer1Wins[traverser]
		payoffLose = node.PayoffPlayer0Wins[traverser]
	}

	travCombos, err := s.riverCache.GetRiverCombos(traverser, rangeTrav, board)
	if err != nil {
		return nil, err
	}
	oppCombos, err := s.riverCache.GetRiverCombos(1-traverser, rangeOpp, board)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(piTrav))
	for _, tc := range travCombos {
		var acc float64
		for _, oc := range oppCombos {
			if cards.Overlaps(tc.Combo.Mask(), oc.Combo.Mask()) {
				continue
			}
			oppReach := piOpp[oc.InitalIndex]
			switch {
			case tc.Rank < oc.Rank:
				acc += oppReach * payoffWin
			case tc.Rank > oc.Rank:
				acc += oppReach * payoffLose
			default:
				acc += oppReach * payoffTie
			}
		}
		out[tc.InitalIndex] = chanceReach * acc
	}
	return out, nil
}

func (s *Solver) cfrTerminal(node *tree.Node, piTrav, piOpp []float64, traverser int, board uint64, chanceReach float64) ([]float64, error) {
	rangeTrav := s.rangeMgr.Range(traverser)
	payoff := node.Payoff[traverser]
	oppSum := sumVec(piOpp)

	out := make([]float64, len(piTrav))
	for h, combo := range rangeTrav {
		if combo.ConflictsWith(board) {
			continue
		}
		out[h] = chanceReach * oppSum * payoff
	}
	return out, nil
}

func sumVec(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

// zeroAndRenormalize returns a copy of reach with entries zeroed for any
// combo in rng that conflicts with blockMask, then renormalized to sum 1
// (left all-zero if no combo survives).
func zeroAndRenormalize(reach []float64, rng ranges.Range, blockMask uint64) []float64 {
	out := make([]float64, len(reach))
	var sum float64
	for h, combo := range rng {
		if combo.ConflictsWith(blockMask) {
			continue
		}
		out[h] = reach[h]
		sum += out[h]
	}
	if sum > 0 {
		for h := range out {
			out[h] /= sum
		}
	}
	return out
}
