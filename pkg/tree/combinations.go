package tree

import "github.com/ehrlich-postflop/solver-core/pkg/cards"

// forEachKSubset enumerates every size-k subset of cs in lexicographic
// index order, reusing a single scratch buffer passed to fn.
func forEachKSubset(cs []cards.Card, k int, fn func([]cards.Card)) {
	n := len(cs)
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	buf := make([]cards.Card, k)
	for {
		for i, v := range idx {
			buf[i] = cs[v]
		}
		fn(buf)

		i := k - 1
		for i >= 0 && idx[i] == i+n-k {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// dealCountForRound is the number of community cards a chance node deals
// to reach round.
func dealCountForRound(round Round) int {
	switch round {
	case Flop:
		return 3
	case Turn, River:
		return 1
	default:
		return 0
	}
}
