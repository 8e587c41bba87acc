// Package config loads scenario JSON files: solver configuration, the
// game Rule, and the two player ranges.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ehrlich-postflop/solver-core/pkg/apperr"
	"github.com/ehrlich-postflop/solver-core/pkg/cards"
	"github.com/ehrlich-postflop/solver-core/pkg/tree"
)

// SolverConfig carries the solver's iteration count and worker count.
type SolverConfig struct {
	Iterations int `json:"iterations"`
	Threads    int `json:"threads"`
}

// Blinds holds the small/big blind sizes.
type Blinds struct {
	SB float64 `json:"sb"`
	BB float64 `json:"bb"`
}

// Commitments holds each player's chips already committed at scenario
// start, keyed by position in the JSON ("ip"/"oop").
type Commitments struct {
	IP  float64 `json:"ip"`
	OOP float64 `json:"oop"`
}

// StreetSetting mirrors tree.StreetSetting as it appears in JSON.
type StreetSetting struct {
	BetSizesPercent   []float64 `json:"bet_sizes_percent"`
	RaiseSizesPercent []float64 `json:"raise_sizes_percent"`
	DonkSizesPercent  []float64 `json:"donk_sizes_percent"`
	AllowAllIn        bool      `json:"allow_all_in"`
}

// GameRule is the scenario's "game_rule" object.
type GameRule struct {
	StartingRound       string                   `json:"starting_round"`
	InitialBoard        []string                 `json:"initial_board"`
	InitialCommitments  Commitments              `json:"initial_commitments"`
	Blinds              Blinds                   `json:"blinds"`
	EffectiveStack      float64                  `json:"effective_stack"`
	RaiseLimitPerStreet int                      `json:"raise_limit_per_street"`
	AllInThresholdRatio float64                  `json:"all_in_threshold_ratio"`
	BuildingSettings    map[string]StreetSetting `json:"building_settings"`
}

// PlayerRanges is the scenario's "player_ranges" object.
type PlayerRanges struct {
	IP  string `json:"ip"`
	OOP string `json:"oop"`
}

// Scenario is the full scenario JSON document.
type Scenario struct {
	TestCaseName       string       `json:"test_case_name"`
	Description        string       `json:"description"`
	SolverConfig       SolverConfig `json:"solver_config"`
	GameRule           GameRule     `json:"game_rule"`
	PlayerRanges       PlayerRanges `json:"player_ranges"`
	ExpectedOutputFile string       `json:"expected_output_file,omitempty"`
}

// Load reads and parses a scenario JSON file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Resource, fmt.Sprintf("reading scenario file %q", path), err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperr.Wrap(apperr.InputFormat, fmt.Sprintf("parsing scenario JSON %q", path), err)
	}
	return &s, nil
}

var roundNames = map[string]tree.Round{
	"Preflop": tree.Preflop,
	"Flop":    tree.Flop,
	"Turn":    tree.Turn,
	"River":   tree.River,
}

// ToRule converts the scenario's GameRule into a tree.Rule, parsing the
// initial board string list into a bitmask.
func (s *Scenario) ToRule() (tree.Rule, error) {
	round, ok := roundNames[s.GameRule.StartingRound]
	if !ok {
		return tree.Rule{}, apperr.New(apperr.InputFormat, fmt.Sprintf("unknown starting_round %q", s.GameRule.StartingRound))
	}

	boardCards, err := parseBoard(s.GameRule.InitialBoard)
	if err != nil {
		return tree.Rule{}, apperr.Wrap(apperr.InputFormat, "parsing initial_board", err)
	}

	settings := make(map[string]tree.StreetSetting, len(s.GameRule.BuildingSettings))
	for key, st := range s.GameRule.BuildingSettings {
		settings[key] = tree.StreetSetting{
			BetSizesPercent:   st.BetSizesPercent,
			RaiseSizesPercent: st.RaiseSizesPercent,
			DonkSizesPercent:  st.DonkSizesPercent,
			AllowAllIn:        st.AllowAllIn,
		}
	}

	return tree.Rule{
		StartingRound:    round,
		InitialBoardMask: cards.CardsToMask(boardCards),
		InitialCommitment: tree.Commitments{
			IP:  s.GameRule.InitialCommitments.IP,
			OOP: s.GameRule.InitialCommitments.OOP,
		},
		SmallBlind:          s.GameRule.Blinds.SB,
		BigBlind:            s.GameRule.Blinds.BB,
		EffectiveStack:      s.GameRule.EffectiveStack,
		RaiseCapPerStreet:   s.GameRule.RaiseLimitPerStreet,
		AllInThresholdRatio: s.GameRule.AllInThresholdRatio,
		BuildingSettings:    settings,
	}, nil
}

func parseBoard(strs []string) ([]cards.Card, error) {
	out := make([]cards.Card, 0, len(strs))
	for _, s := range strs {
		c, err := cards.ParseCard(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
