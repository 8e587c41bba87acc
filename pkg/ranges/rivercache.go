package ranges

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/eval"
)

// RiverCombo annotates one of a player's initial-range combos with its
// rank on a specific river board and its position in the initial range.
type RiverCombo struct {
	Combo       PrivateCards
	Rank        int
	InitalIndex int
}

// RiverCache caches, per player and per river board, the player's range
// sorted worst-hand-first by rank. It is safe for concurrent use: each
// player has an independently mutex-guarded map, and a lookup releases its
// lock before doing any evaluation work so concurrent misses for the same
// key race harmlessly (the first insert wins; later results are dropped).
type RiverCache struct {
	evaluator *eval.Evaluator

	mu      [2]sync.Mutex
	entries [2]map[uint64][]RiverCombo
}

// NewRiverCache builds a cache backed by the given evaluator.
func NewRiverCache(evaluator *eval.Evaluator) *RiverCache {
	return &RiverCache{
		evaluator: evaluator,
		entries:   [2]map[uint64][]RiverCombo{make(map[uint64][]RiverCombo), make(map[uint64][]RiverCombo)},
	}
}

// GetRiverCombos returns player's initialRange annotated with river ranks
// on riverBoardMask, sorted descending by rank (worst hand first; invalid
// ranks sort as worst of all). Results are cached by (player, board) and
// returned by reference on subsequent calls.
func (rc *RiverCache) GetRiverCombos(player int, initialRange Range, riverBoardMask uint64) ([]RiverCombo, error) {
	if cards.Popcount(riverBoardMask) != 5 {
		return nil, fmt.Errorf("river board mask must have popcount 5, got %d", cards.Popcount(riverBoardMask))
	}
	if player != 0 && player != 1 {
		return nil, fmt.Errorf("invalid player index %d", player)
	}

	rc.mu[player].Lock()
	if hit, ok := rc.entries[player][riverBoardMask]; ok {
		rc.mu[player].Unlock()
		return hit, nil
	}
	rc.mu[player].Unlock()

	computed := rc.calculate(initialRange, riverBoardMask)

	rc.mu[player].Lock()
	defer rc.mu[player].Unlock()
	if existing, ok := rc.entries[player][riverBoardMask]; ok {
		// Another goroutine won the race; our work is dropped.
		return existing, nil
	}
	rc.entries[player][riverBoardMask] = computed
	return computed, nil
}

func (rc *RiverCache) calculate(initialRange Range, riverBoardMask uint64) []RiverCombo {
	out := make([]RiverCombo, 0, len(initialRange))
	for i, combo := range initialRange {
		if combo.ConflictsWith(riverBoardMask) {
			continue // blocked combos are excluded from the cardinality
		}
		rank := rc.evaluator.Rank(combo.Mask(), riverBoardMask)
		out = append(out, RiverCombo{Combo: combo, Rank: rank, InitalIndex: i})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rank > out[j].Rank // descending: worst (largest rank number) first
	})
	return out
}
