package ranges

import "fmt"

// Range is an ordered, duplicate-free sequence of PrivateCards. Order is
// stable and doubles as the index space for every per-hand strategy
// vector built over this range.
type Range []PrivateCards

// NewRange builds a Range from combos, rejecting duplicate card pairs.
func NewRange(combos []PrivateCards) (Range, error) {
	r := make(Range, 0, len(combos))
	seen := make(map[uint64]bool, len(combos))
	for _, c := range combos {
		key := c.Hash()
		if seen[key] {
			return nil, fmt.Errorf("duplicate combo %s in range", c)
		}
		seen[key] = true
		r = append(r, c)
	}
	return r, nil
}

// IndexOf returns the index of a combo with matching card identity, or -1.
func (r Range) IndexOf(c PrivateCards) int {
	for i, existing := range r {
		if existing.Equal(c) {
			return i
		}
	}
	return -1
}

// Mask returns the union bitmask of every combo in the range.
func (r Range) Mask() uint64 {
	var m uint64
	for _, c := range r {
		m |= c.Mask()
	}
	return m
}
