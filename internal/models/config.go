package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Objective selects what the optimizer maximizes
type Objective string

const (
	MaxPoints Objective = "max_points" // maximize the blended points score
	MaxSpend  Objective = "max_spend"  // maximize total squad price under the budget
)

var (
	ErrInvalidConfig         = errors.New("invalid optimization config")
	ErrConflictingWeightings = errors.New("fixture and last season weightings cannot both be set")
)

// OptimizationConfig is the immutable input of one solve
type OptimizationConfig struct {
	Objective                Objective `json:"objective"`
	FixtureWeighting         float64   `json:"fixture_weighting"`
	LastSeasonWeighting      float64   `json:"last_season_weighting"`
	RequireAllStarts         bool      `json:"require_all_starts"`
	MaxOnePerTeamPerPosition bool      `json:"max_one_per_team_per_position"`
	ExcludeInjuryRisk        bool      `json:"exclude_injury_risk"`
}

// DefaultOptimizationConfig mirrors the dashboard defaults
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		Objective:                MaxPoints,
		RequireAllStarts:         true,
		MaxOnePerTeamPerPosition: true,
		ExcludeInjuryRisk:        true,
	}
}

// Validate rejects out-of-range weightings and unknown objectives
func (c OptimizationConfig) Validate() error {
	switch c.Objective {
	case MaxPoints, MaxSpend:
	default:
		return fmt.Errorf("%w: unknown objective %q", ErrInvalidConfig, c.Objective)
	}
	if err := checkWeight("fixture_weighting", c.FixtureWeighting); err != nil {
		return err
	}
	if err := checkWeight("last_season_weighting", c.LastSeasonWeighting); err != nil {
		return err
	}
	if c.Objective == MaxPoints && c.FixtureWeighting > 0 && c.LastSeasonWeighting > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrConflictingWeightings)
	}
	return nil
}

func checkWeight(name string, w float64) error {
	if math.IsNaN(w) || w < 0 || w > 1 {
		return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidConfig, name, w)
	}
	return nil
}

// Mode resolves the config into the objective variant it selects
func (c OptimizationConfig) Mode() (ObjectiveMode, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Objective == MaxSpend {
		return MaxSpendMode{}, nil
	}
	switch {
	case c.FixtureWeighting > 0:
		return FixtureAdjustedMode{Weight: c.FixtureWeighting}, nil
	case c.LastSeasonWeighting > 0:
		return HistoryAdjustedMode{Weight: c.LastSeasonWeighting}, nil
	}
	return RawPointsMode{}, nil
}

// CacheKey returns a stable string for the full config tuple. Weightings keep
// full precision because any nonzero weighting changes the mode.
func (c OptimizationConfig) CacheKey() string {
	return fmt.Sprintf("%s|%s|%s|%t|%t|%t",
		c.Objective, formatWeighting(c.FixtureWeighting), formatWeighting(c.LastSeasonWeighting),
		c.RequireAllStarts, c.MaxOnePerTeamPerPosition, c.ExcludeInjuryRisk)
}

func formatWeighting(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}

// ObjectiveMode is the closed set of objective formulations.
// Exactly one of RawPointsMode, FixtureAdjustedMode, HistoryAdjustedMode or MaxSpendMode.
type ObjectiveMode interface {
	objectiveMode()
	String() string
}

type RawPointsMode struct{}

type FixtureAdjustedMode struct {
	Weight float64
}

type HistoryAdjustedMode struct {
	Weight float64
}

type MaxSpendMode struct{}

func (RawPointsMode) objectiveMode()       {}
func (FixtureAdjustedMode) objectiveMode() {}
func (HistoryAdjustedMode) objectiveMode() {}
func (MaxSpendMode) objectiveMode()        {}

func (RawPointsMode) String() string { return "raw_points" }

func (m FixtureAdjustedMode) String() string {
	return fmt.Sprintf("fixture_adjusted(%.2f)", m.Weight)
}

func (m HistoryAdjustedMode) String() string {
	return fmt.Sprintf("history_adjusted(%.2f)", m.Weight)
}

func (MaxSpendMode) String() string { return "max_spend" }
