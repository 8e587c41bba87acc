package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-postflop/solver-core/pkg/apperr"
	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

const sampleScenario = `{
  "test_case_name": "turn_probe",
  "description": "IP barrels, OOP probes turns",
  "solver_config": { "iterations": 150, "threads": 4 },
  "game_rule": {
    "starting_round": "Turn",
    "initial_board": ["Ac", "Kd", "5h", "2s"],
    "initial_commitments": { "ip": 12.5, "oop": 12.5 },
    "blinds": { "sb": 0.5, "bb": 1 },
    "effective_stack": 100,
    "raise_limit_per_street": 3,
    "all_in_threshold_ratio": 0.98,
    "building_settings": {
      "turn_ip": {
        "bet_sizes_percent": [33, 75],
        "raise_sizes_percent": [100],
        "donk_sizes_percent": [],
        "allow_all_in": true
      },
      "turn_oop": {
        "bet_sizes_percent": [50],
        "raise_sizes_percent": [100],
        "donk_sizes_percent": [33],
        "allow_all_in": true
      }
    }
  },
  "player_ranges": { "ip": "AKs,QQ", "oop": "KK,AQs:0.5" },
  "expected_output_file": "turn_probe_expected.json"
}`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndToRule(t *testing.T) {
	s, err := Load(writeScenario(t, sampleScenario))
	require.NoError(t, err)

	require.Equal(t, "turn_probe", s.TestCaseName)
	require.Equal(t, 150, s.SolverConfig.Iterations)
	require.Equal(t, 4, s.SolverConfig.Threads)
	require.Equal(t, "AKs,QQ", s.PlayerRanges.IP)
	require.Equal(t, "turn_probe_expected.json", s.ExpectedOutputFile)

	rule, err := s.ToRule()
	require.NoError(t, err)
	require.Equal(t, tree.Turn, rule.StartingRound)
	require.Equal(t, 4, cards.Popcount(rule.InitialBoardMask))
	require.Equal(t, 12.5, rule.InitialCommitment.IP)
	require.Equal(t, 0.5, rule.SmallBlind)
	require.Equal(t, 1.0, rule.BigBlind)
	require.Equal(t, 100.0, rule.EffectiveStack)
	require.Equal(t, 3, rule.RaiseCapPerStreet)
	require.Equal(t, 0.98, rule.AllInThresholdRatio)

	ip := rule.Setting(tree.Turn, tree.IP)
	require.Equal(t, []float64{33, 75}, ip.BetSizesPercent)
	require.True(t, ip.AllowAllIn)
	oop := rule.Setting(tree.Turn, tree.OOP)
	require.Equal(t, []float64{33}, oop.DonkSizesPercent)
}

func TestLoadMissingFileIsResourceError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, apperr.Resource, ae.Kind)
}

func TestLoadMalformedJSONIsInputFormatError(t *testing.T) {
	_, err := Load(writeScenario(t, "{not json"))
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, apperr.InputFormat, ae.Kind)
}

func TestToRuleRejectsUnknownRound(t *testing.T) {
	s, err := Load(writeScenario(t, sampleScenario))
	require.NoError(t, err)
	s.GameRule.StartingRound = "Fourth Street"
	_, err = s.ToRule()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, apperr.InputFormat, ae.Kind)
}

func TestToRuleRejectsBadBoardCard(t *testing.T) {
	s, err := Load(writeScenario(t, sampleScenario))
	require.NoError(t, err)
	s.GameRule.InitialBoard = []string{"Ac", "Zz"}
	_, err = s.ToRule()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, apperr.InputFormat, ae.Kind)
}
