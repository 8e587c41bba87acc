package tree

import "fmt"

// Round is a betting street.
type Round int

const (
	Preflop Round = iota
	Flop
	Turn
	River
)

// String renders the round name in the lowercase form used in
// BuildingSettings keys ("flop", "turn", "river").
func (r Round) String() string {
	switch r {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	default:
		return "unknown"
	}
}

// Seat indexes the two players. The root action node's acting player is
// always OOP, by convention.
const (
	IP  = 0
	OOP = 1
)

// StreetSetting is the bet/raise/donk abstraction for one (street, seat)
// pair.
type StreetSetting struct {
	BetSizesPercent   []float64
	RaiseSizesPercent []float64
	DonkSizesPercent  []float64
	AllowAllIn        bool
}

// Commitments holds each player's chips already committed to the pot at
// the start of the tree.
type Commitments struct {
	IP  float64
	OOP float64
}

// Rule is the immutable configuration a Builder consumes to produce a
// tree. It is never mutated after construction.
type Rule struct {
	StartingRound       Round
	InitialBoardMask    uint64
	InitialCommitment   Commitments
	SmallBlind          float64
	BigBlind            float64
	EffectiveStack      float64
	RaiseCapPerStreet   int
	AllInThresholdRatio float64

	// BuildingSettings is keyed by "<street>_<pos>", street one of
	// flop/turn/river, pos one of ip/oop.
	BuildingSettings map[string]StreetSetting
}

// settingKey builds the BuildingSettings lookup key for a round and seat.
func settingKey(round Round, seat int) string {
	pos := "ip"
	if seat == OOP {
		pos = "oop"
	}
	return fmt.Sprintf("%s_%s", round, pos)
}

// Setting looks up the abstraction for a round and seat, returning the
// zero value (no bets/raises permitted) if absent.
func (r Rule) Setting(round Round, seat int) StreetSetting {
	return r.BuildingSettings[settingKey(round, seat)]
}
