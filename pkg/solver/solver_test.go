package solver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/eval"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

func testCard(t *testing.T, s string) cards.Card {
	t.Helper()
	c, err := cards.ParseCard(s)
	require.NoError(t, err)
	return c
}

func testCombo(t *testing.T, a, b string, weight float64) ranges.PrivateCards {
	t.Helper()
	pc, err := ranges.NewPrivateCards(testCard(t, a), testCard(t, b), weight)
	require.NoError(t, err)
	return pc
}

func testRange(t *testing.T, combos ...ranges.PrivateCards) ranges.Range {
	t.Helper()
	r, err := ranges.NewRange(combos)
	require.NoError(t, err)
	return r
}

func testBoard(t *testing.T, s string) uint64 {
	t.Helper()
	cs, err := cards.ParseCards(s)
	require.NoError(t, err)
	return cards.CardsToMask(cs)
}

func testEvaluator(t *testing.T, lines ...string) *eval.Evaluator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranks.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	ev, err := eval.LoadEvaluator(path)
	require.NoError(t, err)
	return ev
}

// checkdownTree is the minimal two-action-node river line: OOP checks, IP
// checks, showdown at the given commitments.
func checkdownTree(commit [2]float64, rangeSize int) *tree.Node {
	check := []tree.Action{{Type: tree.Check}}
	pot := commit[0] + commit[1]
	showdown := tree.NewShowdownNode(tree.River, pot,
		[2]float64{commit[1], -commit[1]},
		[2]float64{-commit[0], commit[0]},
		[2]float64{0, 0})
	ipNode := tree.NewActionNode(tree.River, pot, tree.IP, check, []*tree.Node{showdown}, rangeSize)
	root := tree.NewActionNode(tree.River, pot, tree.OOP, check, []*tree.Node{ipNode}, rangeSize)
	tree.AssignMetadata(root)
	return root
}

func TestZeroAndRenormalize(t *testing.T) {
	rng := testRange(t,
		testCombo(t, "As", "Ah", 1),
		testCombo(t, "Ks", "Kh", 1),
		testCombo(t, "Qs", "Qh", 1),
	)
	reach := []float64{0.5, 0.25, 0.25}
	out := zeroAndRenormalize(reach, rng, testCard(t, "As").Mask())

	require.Equal(t, 0.0, out[0])
	require.InDelta(t, 0.5, out[1], 1e-12)
	require.InDelta(t, 0.5, out[2], 1e-12)

	// Blocking everything leaves an all-zero vector.
	all := rng.Mask()
	out = zeroAndRenormalize(reach, rng, all)
	for _, v := range out {
		require.Equal(t, 0.0, v)
	}
}

func TestStopBeforeTrainCompletesNoIterations(t *testing.T) {
	board := testBoard(t, "2h5c7dTsJc")
	r0 := testRange(t, testCombo(t, "As", "Ah", 1))
	r1 := testRange(t, testCombo(t, "Ks", "Kh", 1))
	ev := testEvaluator(t, "As-Ah-Jc-Ts-7d,100", "Ks-Kh-Jc-Ts-7d,200")

	s := New(checkdownTree([2]float64{5, 5}, 1), ranges.NewManager(r0, r1, board), ranges.NewRiverCache(ev))
	s.Stop()

	completed, err := s.Train(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 0, completed)
	require.True(t, s.Stopped())
}

func TestTrainRespectsContextCancellation(t *testing.T) {
	board := testBoard(t, "2h5c7dTsJc")
	r0 := testRange(t, testCombo(t, "As", "Ah", 1))
	r1 := testRange(t, testCombo(t, "Ks", "Kh", 1))
	ev := testEvaluator(t, "As-Ah-Jc-Ts-7d,100", "Ks-Kh-Jc-Ts-7d,200")

	s := New(checkdownTree([2]float64{5, 5}, 1), ranges.NewManager(r0, r1, board), ranges.NewRiverCache(ev))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Train(ctx, 100)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTrainForZeroDurationReturnsImmediately(t *testing.T) {
	board := testBoard(t, "2h5c7dTsJc")
	r0 := testRange(t, testCombo(t, "As", "Ah", 1))
	r1 := testRange(t, testCombo(t, "Ks", "Kh", 1))
	ev := testEvaluator(t, "As-Ah-Jc-Ts-7d,100", "Ks-Kh-Jc-Ts-7d,200")

	mock := quartz.NewMock(t)
	s := New(checkdownTree([2]float64{5, 5}, 1), ranges.NewManager(r0, r1, board), ranges.NewRiverCache(ev), WithClock(mock))

	completed, err := s.TrainFor(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 0, completed)
}

func TestTrainForStopsWhenMockClockAdvances(t *testing.T) {
	board := testBoard(t, "2h5c7dTsJc")
	r0 := testRange(t, testCombo(t, "As", "Ah", 1))
	r1 := testRange(t, testCombo(t, "Ks", "Kh", 1))
	ev := testEvaluator(t, "As-Ah-Jc-Ts-7d,100", "Ks-Kh-Jc-Ts-7d,200")

	mock := quartz.NewMock(t)
	s := New(checkdownTree([2]float64{5, 5}, 1), ranges.NewManager(r0, r1, board), ranges.NewRiverCache(ev), WithClock(mock))

	done := make(chan int, 1)
	go func() {
		n, _ := s.TrainFor(context.Background(), time.Minute)
		done <- n
	}()

	for {
		select {
		case n := <-done:
			require.GreaterOrEqual(t, n, 0)
			return
		default:
			mock.Advance(10 * time.Second)
		}
	}
}

func TestShowdownTiePaysZero(t *testing.T) {
	board := testBoard(t, "2h5c7dTsJc")
	r0 := testRange(t, testCombo(t, "Ah", "Kh", 1))
	r1 := testRange(t, testCombo(t, "Ad", "Kd", 1))
	// Both combos make the identical ace-king high hand.
	ev := testEvaluator(t, "As-Kh-Jc-Ts-7d,500")

	root := checkdownTree([2]float64{5, 5}, 1)
	s := New(root, ranges.NewManager(r0, r1, board), ranges.NewRiverCache(ev))

	_, err := s.Train(context.Background(), 5)
	require.NoError(t, err)

	br := s.BestResponse()
	ev0, _, err := br.EV(0)
	require.NoError(t, err)
	require.InDelta(t, 0.0, ev0, 1e-9)
	ev1, _, err := br.EV(1)
	require.NoError(t, err)
	require.InDelta(t, 0.0, ev1, 1e-9)
}

// TestTerminalNodeBlockerTrick cross-checks the per-card blocker-sum
// shortcut at fold terminals against the direct quadratic scan.
func TestTerminalNodeBlockerTrick(t *testing.T) {
	board := testBoard(t, "2h5c7d")
	r0 := testRange(t,
		testCombo(t, "As", "Ah", 1),
		testCombo(t, "As", "Ks", 1),
		testCombo(t, "Qd", "Qc", 1),
		testCombo(t, "Js", "Jh", 1),
	)
	r1 := testRange(t,
		testCombo(t, "As", "Ad", 1),
		testCombo(t, "Ks", "Kh", 1),
		testCombo(t, "Qh", "Qs", 1),
		testCombo(t, "Js", "Jh", 1),
	)
	mgr := ranges.NewManager(r0, r1, board)

	terminal := tree.NewTerminalNode(tree.Flop, 10, [2]float64{7, -7})
	br := NewBestResponse(terminal, mgr, nil)

	reach := [2][]float64{
		append([]float64(nil), mgr.InitialReachProbs(0)...),
		append([]float64(nil), mgr.InitialReachProbs(1)...),
	}
	got, err := br.terminalNode(terminal, 0, reach, board, 1.0)
	require.NoError(t, err)

	for h, combo := range r0 {
		var want float64
		for j, opp := range r1 {
			if opp.ConflictsWith(board) || opp.ConflictsWith(combo.Mask()) {
				continue
			}
			want += reach[1][j]
		}
		want *= 7
		if combo.ConflictsWith(board) {
			want = 0
		}
		require.InDeltaf(t, want, got[h], 1e-12, "combo %s", combo)
	}
}

func TestEVRecordingExposedPerHand(t *testing.T) {
	board := testBoard(t, "2h5c7dTsJc")
	r0 := testRange(t, testCombo(t, "As", "Ah", 1))
	r1 := testRange(t, testCombo(t, "Ks", "Kh", 1))
	ev := testEvaluator(t, "As-Ah-Jc-Ts-7d,100", "Ks-Kh-Jc-Ts-7d,200")

	root := checkdownTree([2]float64{5, 5}, 1)
	s := New(root, ranges.NewManager(r0, r1, board), ranges.NewRiverCache(ev), WithEVRecording(true))

	_, err := s.Train(context.Background(), 1)
	require.NoError(t, err)

	evs := s.EVs(root)
	require.NotNil(t, evs)
	row, ok := evs["KhKs"]
	require.True(t, ok)
	require.Len(t, row, 1)
	// OOP holds KK and always loses the checked-down showdown.
	require.InDelta(t, -5.0, row[0], 1e-9)

	// Without recording, nothing is exposed.
	off := New(root, ranges.NewManager(r0, r1, board), ranges.NewRiverCache(ev))
	require.Nil(t, off.EVs(root))
}
