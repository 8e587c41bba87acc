// Package eval implements the 7-card hand evaluator: rank lookup backed by
// two hash maps (flush and non-flush hands) loaded from a text dictionary
// and cached as a binary sidecar file.
package eval

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehrlich-postflop/solver-core/pkg/apperr"
	"github.com/ehrlich-postflop/solver-core/pkg/cards"
)

// InvalidRank is returned for any hand that cannot be evaluated (missing
// dictionary entry, or overlapping/insufficient cards).
const InvalidRank = math.MaxInt32

// ComparisonResult is the outcome of comparing two hole-card hands on a
// shared board.
type ComparisonResult int

const (
	Tie ComparisonResult = iota
	Player1Wins
	Player2Wins
)

const (
	numRanks = 13
	numSuits = 4
)

var suitMasks = computeSuitMasks()

func computeSuitMasks() [numSuits]uint64 {
	var masks [numSuits]uint64
	for r := 0; r < numRanks; r++ {
		for s := 0; s < numSuits; s++ {
			masks[s] |= uint64(1) << uint(r*numSuits+s)
		}
	}
	return masks
}

// RanksHash collapses a 5-card mask into a suit-invariant rank-multiset key
// by folding each rank's 4-suit nibble down to its bit count. Two masks
// with the same per-rank card counts (regardless of which suits) hash
// identically.
func RanksHash(mask uint64) uint64 {
	const m1 = 0x5555555555555555
	const m2 = 0x3333333333333333
	step1 := (mask & m1) + ((mask >> 1) & m1)
	step2 := (step1 & m2) + ((step1 >> 2) & m2)
	return step2
}

// IsFlush reports whether a 5-card mask lies entirely within one suit.
func IsFlush(mask uint64) bool {
	for _, sm := range suitMasks {
		if mask&sm == mask {
			return true
		}
	}
	return false
}

// Evaluator holds the loaded rank dictionary. It is read-only after
// construction and safe for concurrent use by any number of readers.
type Evaluator struct {
	flushRanks    map[uint64]int32
	nonFlushRanks map[uint64]int32
}

// LoadEvaluator loads the rank dictionary for textPath, preferring the
// binary sidecar cache (textPath with its extension replaced by ".bin").
// If the cache is missing or unreadable, it falls back to the text file and
// rewrites the cache. A missing or unreadable text file is fatal.
func LoadEvaluator(textPath string) (*Evaluator, error) {
	cachePath := binCachePath(textPath)

	if ev, err := loadBinaryCache(cachePath); err == nil {
		return ev, nil
	}

	ev, err := loadTextDictionary(textPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.Resource, fmt.Sprintf("loading hand rank dictionary %q", textPath), err)
	}

	// Cache rewrite failures are non-fatal: evaluation can proceed from the
	// freshly parsed text dictionary.
	_ = ev.saveBinaryCache(cachePath)

	return ev, nil
}

func binCachePath(textPath string) string {
	ext := filepath.Ext(textPath)
	return strings.TrimSuffix(textPath, ext) + ".bin"
}

func loadTextDictionary(textPath string) (*Evaluator, error) {
	f, err := os.Open(textPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ev := &Evaluator{
		flushRanks:    make(map[uint64]int32),
		nonFlushRanks: make(map[uint64]int32),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ",")
		if idx < 0 {
			continue // malformed line, silently skipped
		}
		cardList, rankStr := line[:idx], line[idx+1:]
		mask, err := parseCardDashList(cardList)
		if err != nil {
			continue
		}
		var rank int
		if _, err := fmt.Sscanf(strings.TrimSpace(rankStr), "%d", &rank); err != nil {
			continue
		}
		if cards.Popcount(mask) != 5 {
			continue
		}
		ev.insert(mask, int32(rank))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ev.flushRanks) == 0 && len(ev.nonFlushRanks) == 0 {
		return nil, fmt.Errorf("no valid rank entries parsed from %q", textPath)
	}
	return ev, nil
}

func (ev *Evaluator) insert(mask uint64, rank int32) {
	if IsFlush(mask) {
		ev.flushRanks[mask] = rank // duplicate keys overwrite
		return
	}
	ev.nonFlushRanks[RanksHash(mask)] = rank
}

func parseCardDashList(s string) (uint64, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 5 {
		return 0, fmt.Errorf("expected 5 dash-separated cards, got %d", len(parts))
	}
	var mask uint64
	for _, p := range parts {
		c, err := cards.ParseCard(strings.TrimSpace(p))
		if err != nil {
			return 0, err
		}
		mask |= c.Mask()
	}
	return mask, nil
}

// Rank returns the strength of the best 5-card hand obtainable from
// holeMask and boardMask combined; lower is stronger. Overlapping or
// otherwise invalid inputs return InvalidRank.
func (ev *Evaluator) Rank(holeMask, boardMask uint64) int {
	if cards.Overlaps(holeMask, boardMask) {
		return InvalidRank
	}
	combined := holeMask | boardMask
	n := cards.Popcount(combined)
	if n < 5 || n > 7 {
		return InvalidRank
	}
	all := cards.MaskToCards(combined)
	best := InvalidRank
	forEachFiveSubset(all, func(sub []cards.Card) {
		mask := cards.CardsToMask(sub)
		r := ev.rank5(mask)
		if r < best {
			best = r
		}
	})
	return best
}

func (ev *Evaluator) rank5(mask uint64) int {
	if IsFlush(mask) {
		if r, ok := ev.flushRanks[mask]; ok {
			return int(r)
		}
		return InvalidRank
	}
	if r, ok := ev.nonFlushRanks[RanksHash(mask)]; ok {
		return int(r)
	}
	return InvalidRank
}

// forEachFiveSubset enumerates every 5-card subset of cs (len(cs) in 5..7).
func forEachFiveSubset(cs []cards.Card, fn func([]cards.Card)) {
	n := len(cs)
	if n == 5 {
		fn(cs)
		return
	}
	idx := make([]int, 5)
	for i := range idx {
		idx[i] = i
	}
	buf := make([]cards.Card, 5)
	for {
		for i, v := range idx {
			buf[i] = cs[v]
		}
		fn(buf)

		// Advance to the next combination in lexicographic index order.
		i := 4
		for i >= 0 && idx[i] == i+n-5 {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < 5; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// Compare ranks hole1 and hole2 against the shared board, reporting which
// player has the stronger (or tied) hand. Consistent with Rank: a lower
// rank number wins.
func (ev *Evaluator) Compare(hole1, hole2, boardMask uint64) ComparisonResult {
	r1 := ev.Rank(hole1, boardMask)
	r2 := ev.Rank(hole2, boardMask)
	switch {
	case r1 < r2:
		return Player1Wins
	case r2 < r1:
		return Player2Wins
	default:
		return Tie
	}
}

func loadBinaryCache(path string) (*Evaluator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	ev := &Evaluator{
		flushRanks:    make(map[uint64]int32),
		nonFlushRanks: make(map[uint64]int32),
	}

	if err := readTable(r, ev.flushRanks); err != nil {
		return nil, err
	}
	if err := readTable(r, ev.nonFlushRanks); err != nil {
		return nil, err
	}
	return ev, nil
}

func readTable(r *bufio.Reader, dst map[uint64]int32) error {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return err
	}
	for i := uint64(0); i < size; i++ {
		var key uint64
		var rank int32
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
			return err
		}
		dst[key] = rank
	}
	return nil
}

// saveBinaryCache writes the evaluator's tables using a temp-file-then-
// rename protocol so concurrent writers never observe a partial file.
func (ev *Evaluator) saveBinaryCache(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	w := bufio.NewWriter(tmp)
	if err := writeTable(w, ev.flushRanks); err != nil {
		tmp.Close()
		return err
	}
	if err := writeTable(w, ev.nonFlushRanks); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func writeTable(w *bufio.Writer, src map[uint64]int32) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(src))); err != nil {
		return err
	}
	for key, rank := range src {
		if err := binary.Write(w, binary.LittleEndian, key); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, rank); err != nil {
			return err
		}
	}
	return nil
}
