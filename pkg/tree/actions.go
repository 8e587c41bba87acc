package tree

import "fmt"

// ActionType is the kind of action labeling an Action-node child edge.
type ActionType uint8

const (
	Check ActionType = iota
	Call
	Fold
	Bet
	Raise
)

// Action labels one child edge of an Action node. Amount is the total
// commitment added by Bet/Raise (zero for Check/Call/Fold).
type Action struct {
	Type   ActionType
	Amount float64
}

// String renders the action in the strategy-dump action-string form:
// "CHECK", "CALL", "FOLD", "BET <amount>", "RAISE <amount>".
func (a Action) String() string {
	switch a.Type {
	case Check:
		return "CHECK"
	case Call:
		return "CALL"
	case Fold:
		return "FOLD"
	case Bet:
		return fmt.Sprintf("BET %g", a.Amount)
	case Raise:
		return fmt.Sprintf("RAISE %g", a.Amount)
	default:
		return "UNKNOWN"
	}
}
