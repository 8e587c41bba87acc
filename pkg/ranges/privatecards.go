// Package ranges manages weighted player ranges: canonical hole-card
// combos, blocker-aware initial reach probabilities, and the per-board
// river rank cache.
package ranges

import (
	"fmt"

	"github.com/ehrlich-postflop/solver-core/pkg/cards"
)

// PrivateCards is an unordered pair of distinct hole cards stored in
// canonical (lower card first) order, with an associated weight.
// Equality and Hash ignore weight.
type PrivateCards struct {
	Card1  cards.Card
	Card2  cards.Card
	Weight float64
	mask   uint64
}

// NewPrivateCards builds a PrivateCards, canonicalizing card order.
func NewPrivateCards(c1, c2 cards.Card, weight float64) (PrivateCards, error) {
	if c1 == c2 {
		return PrivateCards{}, fmt.Errorf("duplicate card in combo: %v", c1)
	}
	if !c1.Valid() || !c2.Valid() {
		return PrivateCards{}, fmt.Errorf("invalid card in combo: %v/%v", c1, c2)
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	return PrivateCards{Card1: c1, Card2: c2, Weight: weight, mask: c1.Mask() | c2.Mask()}, nil
}

// Mask returns the 2-bit card mask for this combo.
func (p PrivateCards) Mask() uint64 {
	return p.mask
}

// ConflictsWith reports whether p shares a card with mask (another combo's
// mask, or a board mask).
func (p PrivateCards) ConflictsWith(mask uint64) bool {
	return cards.Overlaps(p.mask, mask)
}

// Equal compares card identity only, ignoring weight.
func (p PrivateCards) Equal(other PrivateCards) bool {
	return p.Card1 == other.Card1 && p.Card2 == other.Card2
}

// Hash combines the two card ints into a stable key, suitable for map keys
// and cross-player identity lookups.
func (p PrivateCards) Hash() uint64 {
	return uint64(p.Card1)*64 + uint64(p.Card2)
}

// String renders the combo in standard notation, lower card first, e.g.
// "KhAs".
func (p PrivateCards) String() string {
	return p.Card1.String() + p.Card2.String()
}
