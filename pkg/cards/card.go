// Package cards provides the 0..51 integer card encoding shared by every
// other package: bitmask conversions and rank/suit string helpers.
package cards

import (
	"fmt"
	"math/bits"
	"strings"
)

// Card is an integer in [0,52). The encoding is rank*4 + suit, with ranks
// 2..A mapped to 0..12 and suits c,d,h,s mapped to 0..3.
type Card int

// Invalid is returned by parsing helpers on failure; it is never a valid
// deck position.
const Invalid Card = -1

const (
	numRanks = 13
	numSuits = 4
)

const rankChars = "23456789TJQKA"
const suitChars = "cdhs"

// NewCard builds a Card from a rank index (0=2 .. 12=A) and suit index
// (0=c, 1=d, 2=h, 3=s).
func NewCard(rank, suit int) Card {
	return Card(rank*numSuits + suit)
}

// Rank returns the card's rank index, 0 (deuce) through 12 (ace).
func (c Card) Rank() int {
	return int(c) / numSuits
}

// Suit returns the card's suit index, 0=c 1=d 2=h 3=s.
func (c Card) Suit() int {
	return int(c) % numSuits
}

// Mask returns the single-bit 64-bit mask for this card.
func (c Card) Mask() uint64 {
	return uint64(1) << uint(c)
}

// Valid reports whether c is a legal 0..51 card index.
func (c Card) Valid() bool {
	return c >= 0 && int(c) < numRanks*numSuits
}

// String renders the card in standard two-character notation, e.g. "As", "Td".
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return fmt.Sprintf("%c%c", rankChars[c.Rank()], suitChars[c.Suit()])
}

// ParseCard parses a two-character card string such as "As" or "Td". The
// "10x" alias for "Tx" is accepted for compatibility with external rank
// dictionaries; internally a ten is always normalized to rank char 'T'.
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && s[0] == '1' && s[1] == '0' {
		s = "T" + s[2:]
	}
	if len(s) != 2 {
		return Invalid, fmt.Errorf("invalid card string %q: must be 2 characters", s)
	}
	rank, err := parseRankChar(s[0])
	if err != nil {
		return Invalid, err
	}
	suit, err := parseSuitChar(s[1])
	if err != nil {
		return Invalid, err
	}
	return NewCard(rank, suit), nil
}

func parseRankChar(b byte) (int, error) {
	switch b {
	case 'T', 't':
		return 8, nil
	case 'J', 'j':
		return 9, nil
	case 'Q', 'q':
		return 10, nil
	case 'K', 'k':
		return 11, nil
	case 'A', 'a':
		return 12, nil
	case '2', '3', '4', '5', '6', '7', '8', '9':
		return int(b - '2'), nil
	default:
		return 0, fmt.Errorf("invalid rank: %c", b)
	}
}

func parseSuitChar(b byte) (int, error) {
	switch b {
	case 'c', 'C':
		return 0, nil
	case 'd', 'D':
		return 1, nil
	case 'h', 'H':
		return 2, nil
	case 's', 'S':
		return 3, nil
	default:
		return 0, fmt.Errorf("invalid suit: %c", b)
	}
}

// ParseCards splits a concatenated card string (e.g. "AsKhQd") into cards.
func ParseCards(s string) ([]Card, error) {
	s = strings.ReplaceAll(s, " ", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("invalid cards string %q: must have even length", s)
	}
	out := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, fmt.Errorf("error parsing card at position %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// MaskString renders every set bit of mask in descending card order,
// space separated; used for log messages and error text.
func MaskString(mask uint64) string {
	var sb strings.Builder
	for i := numRanks*numSuits - 1; i >= 0; i-- {
		if mask&(uint64(1)<<uint(i)) != 0 {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(Card(i).String())
		}
	}
	return sb.String()
}

// CardsToMask ORs the bitmasks of a card slice together.
func CardsToMask(cs []Card) uint64 {
	var m uint64
	for _, c := range cs {
		m |= c.Mask()
	}
	return m
}

// MaskToCards expands a bitmask back into a sorted-ascending card slice.
func MaskToCards(mask uint64) []Card {
	out := make([]Card, 0, bits.OnesCount64(mask))
	for mask != 0 {
		i := bits.TrailingZeros64(mask)
		out = append(out, Card(i))
		mask &= mask - 1
	}
	return out
}

// Overlaps reports whether two masks share any card.
func Overlaps(a, b uint64) bool {
	return a&b != 0
}

// Popcount counts the set bits in mask.
func Popcount(mask uint64) int {
	return bits.OnesCount64(mask)
}
