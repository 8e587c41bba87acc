// Package notation parses textual range strings into weighted holdings.
package notation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehrlich-postflop/solver-core/pkg/apperr"
	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
)

// weightDropThreshold is the inclusive cutoff below which a component is
// dropped entirely rather than kept with a near-zero weight.
const weightDropThreshold = 0.005

// defaultWeight is used for any component with no explicit ":<weight>" suffix.
const defaultWeight = 1.0

// ParseRange parses a comma-separated range string into a Range. Each
// component is a pair ("QQ"), suited hand ("AKs"), offsuit hand ("AKo"), or
// specific combo ("AcKc"), optionally suffixed with ":<weight>". Components
// weighing at or below 0.005 are dropped. Combos that conflict with
// boardMask are dropped. Duplicate resolved combos across components are a
// parse error.
func ParseRange(rangeStr string, boardMask uint64) (ranges.Range, error) {
	rangeStr = strings.TrimSpace(rangeStr)
	if rangeStr == "" {
		return nil, apperr.New(apperr.InputFormat, "empty range string")
	}

	var combos []ranges.PrivateCards
	seen := make(map[uint64]bool)

	for _, part := range strings.Split(rangeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		component, weight, err := splitWeight(part)
		if err != nil {
			return nil, apperr.Wrap(apperr.InputFormat, fmt.Sprintf("parsing component %q", part), err)
		}
		if weight <= weightDropThreshold {
			continue
		}

		pairs, err := expandComponent(component)
		if err != nil {
			return nil, apperr.Wrap(apperr.InputFormat, fmt.Sprintf("parsing component %q", part), err)
		}

		for _, pr := range pairs {
			if cards.Overlaps(pr[0].Mask()|pr[1].Mask(), boardMask) {
				continue
			}
			pc, err := ranges.NewPrivateCards(pr[0], pr[1], weight)
			if err != nil {
				return nil, err
			}
			key := pc.Hash()
			if seen[key] {
				return nil, apperr.New(apperr.InputFormat, fmt.Sprintf("duplicate combo %s produced by component %q", pc, part))
			}
			seen[key] = true
			combos = append(combos, pc)
		}
	}

	return ranges.NewRange(combos)
}

// splitWeight separates an optional ":<weight>" suffix, returning the
// stripped component and its weight (defaultWeight if absent).
func splitWeight(part string) (string, float64, error) {
	idx := strings.LastIndex(part, ":")
	if idx < 0 {
		return part, defaultWeight, nil
	}
	weightStr := strings.TrimSpace(part[idx+1:])
	weight, err := strconv.ParseFloat(weightStr, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid weight %q: %w", weightStr, err)
	}
	return strings.TrimSpace(part[:idx]), weight, nil
}

// cardPair is an unordered pair of cards before canonicalization into a
// ranges.PrivateCards.
type cardPair [2]cards.Card

// expandComponent classifies and expands a single range component (with its
// weight suffix already removed) into its enumerated card pairs.
func expandComponent(component string) ([]cardPair, error) {
	switch len(component) {
	case 4:
		if pair, ok := parseSpecificCombo(component); ok {
			return []cardPair{pair}, nil
		}
		return nil, fmt.Errorf("invalid component %q", component)
	case 2:
		rank1, err := parseRankChar(component[0])
		if err != nil {
			return nil, err
		}
		rank2, err := parseRankChar(component[1])
		if err != nil {
			return nil, err
		}
		if rank1 != rank2 {
			return nil, fmt.Errorf("ambiguous component %q: use an 's'/'o' suffix for non-pairs", component)
		}
		return generateCombos(rank1, rank2, false), nil
	case 3:
		rank1, err := parseRankChar(component[0])
		if err != nil {
			return nil, err
		}
		rank2, err := parseRankChar(component[1])
		if err != nil {
			return nil, err
		}
		if rank1 == rank2 {
			return nil, fmt.Errorf("pair %q cannot take a suited/offsuit suffix", component)
		}
		var suited bool
		switch component[2] {
		case 's', 'S':
			suited = true
		case 'o', 'O':
			suited = false
		default:
			return nil, fmt.Errorf("invalid suited/offsuit indicator %q in %q", component[2:], component)
		}
		return generateCombos(rank1, rank2, suited), nil
	default:
		return nil, fmt.Errorf("invalid component %q", component)
	}
}

// parseSpecificCombo parses a 4-character specific combo like "AcKc".
func parseSpecificCombo(s string) (cardPair, bool) {
	c1, err1 := cards.ParseCard(s[0:2])
	c2, err2 := cards.ParseCard(s[2:4])
	if err1 != nil || err2 != nil {
		return cardPair{}, false
	}
	return cardPair{c1, c2}, true
}

func parseRankChar(b byte) (int, error) {
	idx := strings.IndexByte("23456789TJQKA", upperRank(b))
	if idx < 0 {
		return 0, fmt.Errorf("invalid rank character %q", b)
	}
	return idx, nil
}

func upperRank(b byte) byte {
	if b == 't' || b == 'j' || b == 'q' || b == 'k' || b == 'a' {
		return b - ('a' - 'A')
	}
	return b
}

// generateCombos enumerates every card pair for a rank-pair component,
// suited or offsuit as indicated (or a pocket pair when rank1 == rank2).
func generateCombos(rank1, rank2 int, suited bool) []cardPair {
	var out []cardPair
	if rank1 == rank2 {
		for s1 := 0; s1 < 4; s1++ {
			for s2 := s1 + 1; s2 < 4; s2++ {
				out = append(out, cardPair{cards.NewCard(rank1, s1), cards.NewCard(rank1, s2)})
			}
		}
		return out
	}
	if suited {
		for s := 0; s < 4; s++ {
			out = append(out, cardPair{cards.NewCard(rank1, s), cards.NewCard(rank2, s)})
		}
		return out
	}
	for s1 := 0; s1 < 4; s1++ {
		for s2 := 0; s2 < 4; s2++ {
			if s1 == s2 {
				continue
			}
			out = append(out, cardPair{cards.NewCard(rank1, s1), cards.NewCard(rank2, s2)})
		}
	}
	return out
}
