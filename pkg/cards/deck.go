package cards

// FullDeckMask is the bitmask containing all 52 cards.
const FullDeckMask uint64 = (uint64(1) << (numRanks * numSuits)) - 1

// RemainingMask returns the cards of the full deck not present in used.
func RemainingMask(used uint64) uint64 {
	return FullDeckMask &^ used
}

// Enumerate calls fn with every card not set in used, ascending.
func Enumerate(used uint64, fn func(Card)) {
	for c := Card(0); int(c) < numRanks*numSuits; c++ {
		if used&c.Mask() == 0 {
			fn(c)
		}
	}
}
