package optimizer

import (
	"errors"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
)

var ErrSolverFailure = errors.New("solver failure")

// SelectedPlayer is the per-player record carried by a Solution.
// The adjusted fields are only set when the matching weighting is nonzero.
type SelectedPlayer struct {
	ID                       int             `json:"id"`
	Name                     string          `json:"name"`
	Position                 models.Position `json:"position"`
	Team                     string          `json:"team"`
	TeamName                 string          `json:"team_name,omitempty"`
	Price                    float64         `json:"price"`
	ProjPoints               float64         `json:"proj_points"`
	AvgFixtureDifficulty5    float64         `json:"avg_fixture_difficulty_5"`
	Next5Fixtures            string          `json:"next_5_fixtures"`
	InjuryFlag               bool            `json:"injury_flag"`
	IsRegularStarter         bool            `json:"is_regular_starter"`
	ObjectiveCoefficient     float64         `json:"objective_coefficient"`
	FixtureAdjustedPoints    *float64        `json:"fixture_adjusted_points,omitempty"`
	CurrentPointsPerGW       *float64        `json:"current_points_per_gw,omitempty"`
	LastSeasonPointsPerGW    *float64        `json:"last_season_points_per_gw,omitempty"`
	LastSeasonAdjustedPoints *float64        `json:"last_season_adjusted_points,omitempty"`
}

// PositionSummary aggregates the selected players of one position
type PositionSummary struct {
	Count       int     `json:"count"`
	TotalCost   float64 `json:"total_cost"`
	TotalPoints float64 `json:"total_points"`
}

// Solution is the immutable result of one solve. When Feasible is false the
// player fields are empty and SolverStatus reports why.
type Solution struct {
	SolveID                       string                              `json:"solve_id"`
	Feasible                      bool                                `json:"feasible"`
	SolverStatus                  string                              `json:"solver_status"`
	Objective                     models.Objective                    `json:"objective"`
	Mode                          string                              `json:"mode"`
	ObjectiveValue                float64                             `json:"objective_value"`
	TotalPrice                    float64                             `json:"total_price"`
	TotalProjPoints               float64                             `json:"total_proj_points"`
	AvgFixtureDifficulty          float64                             `json:"avg_fixture_difficulty"`
	TotalFixtureAdjustedPoints    *float64                            `json:"total_fixture_adjusted_points,omitempty"`
	TotalLastSeasonAdjustedPoints *float64                            `json:"total_last_season_adjusted_points,omitempty"`
	FixtureWeighting              float64                             `json:"fixture_weighting"`
	LastSeasonWeighting           float64                             `json:"last_season_weighting"`
	SelectedIDs                   []int                               `json:"selected_ids"`
	SelectedPlayers               []SelectedPlayer                    `json:"selected_players"`
	ByTeamCounts                  map[string]int                      `json:"by_team_counts"`
	ByPositionCounts              map[models.Position]int             `json:"by_position_counts"`
	PositionSummary               map[models.Position]PositionSummary `json:"position_summary"`
	CandidateCount                int                                 `json:"candidate_count"`
	NodesExplored                 int                                 `json:"nodes_explored"`
}

// BudgetRemaining returns the unspent part of the budget
func (s *Solution) BudgetRemaining(rules models.LeagueRules) float64 {
	return float64(rules.BudgetTenths-models.Tenths(s.TotalPrice)) / 10
}

// ValidationReport is recomputed from a Solution's selected players
type ValidationReport struct {
	Valid      bool `json:"valid"`
	SquadSize  bool `json:"squad_size"`
	Budget     bool `json:"budget"`
	Positions  bool `json:"positions"`
	ClubLimits bool `json:"club_limits"`
}
