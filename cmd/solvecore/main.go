package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/ehrlich-postflop/solver-core/internal/applog"
	"github.com/ehrlich-postflop/solver-core/internal/config"
	"github.com/ehrlich-postflop/solver-core/pkg/dump"
	"github.com/ehrlich-postflop/solver-core/pkg/eval"
	"github.com/ehrlich-postflop/solver-core/pkg/notation"
	"github.com/ehrlich-postflop/solver-core/pkg/ranges"
	"github.com/ehrlich-postflop/solver-core/pkg/solver"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

// CLI exercises BuildTree/Train/Stop/DumpStrategy end to end against a
// scenario file. It is a demonstration/test harness, not part of the
// library's public contract.
type CLI struct {
	Scenario string `arg:"" help:"Path to the scenario JSON file."`
	RankFile string `help:"Path to the hand-rank text dictionary." default:"testdata/handranks.txt"`
	Output   string `help:"Path to write the strategy dump JSON." default:"strategy.json"`
	MaxDepth int    `help:"Max depth to include in the strategy dump (-1 for unlimited)." default:"-1"`
	Workers  int    `help:"Worker goroutines for chance-node fan-out." default:"1"`
	EVs      bool   `help:"Record per-action expected values and include them in the dump."`
	LogLevel string `help:"Set the log level." enum:"debug,info,warn,error" default:"info"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli)

	level, err := log.ParseLevel(cli.LogLevel)
	if err != nil {
		log.Fatal("invalid log level", "error", err)
	}
	logger := applog.New(level)

	if err := run(cli, logger); err != nil {
		logger.Err(err)
		ctx.Exit(1)
	}
	ctx.Exit(0)
}

func run(cli CLI, logger *applog.Logger) error {
	scenario, err := config.Load(cli.Scenario)
	if err != nil {
		return err
	}

	evaluator, err := eval.LoadEvaluator(cli.RankFile)
	if err != nil {
		return err
	}

	rule, err := scenario.ToRule()
	if err != nil {
		return err
	}

	ipRange, err := notation.ParseRange(scenario.PlayerRanges.IP, rule.InitialBoardMask)
	if err != nil {
		return err
	}
	oopRange, err := notation.ParseRange(scenario.PlayerRanges.OOP, rule.InitialBoardMask)
	if err != nil {
		return err
	}

	root, err := tree.Build(rule, len(ipRange), len(oopRange))
	if err != nil {
		return err
	}
	logger.TreeBuilt(root.SubtreeSize, tree.MemoryEstimate(root))

	rangeMgr := ranges.NewManager(ipRange, oopRange, rule.InitialBoardMask)
	riverCache := ranges.NewRiverCache(evaluator)

	s := solver.New(root, rangeMgr, riverCache,
		solver.WithWorkers(cli.Workers),
		solver.WithEVRecording(cli.EVs))

	// Ctrl-C requests a clean stop at the next iteration boundary rather
	// than killing the run; the partial average strategy is still dumped.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		s.Stop()
	}()

	ctx := context.Background()
	completed, err := s.Train(ctx, scenario.SolverConfig.Iterations)
	if err != nil {
		return err
	}
	if s.Stopped() {
		logger.StopAcknowledged(completed)
	}
	logger.Iteration(completed)

	exploitability, err := s.BestResponse().Exploitability()
	if err != nil {
		return err
	}
	logger.Exploitability(exploitability)

	var evs dump.EVProvider
	if cli.EVs {
		evs = s
	}
	if err := dump.Write(cli.Output, root, rangeMgr, cli.MaxDepth, evs); err != nil {
		return err
	}
	fmt.Printf("wrote strategy dump to %s\n", cli.Output)
	return nil
}
