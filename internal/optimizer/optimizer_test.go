package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/scoring"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/solver"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/logger"
)

func newTestOptimizer(t *testing.T) *Optimizer {
	t.Helper()
	logger.InitLogger("error", false).SetOutput(io.Discard)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewOptimizer(solver.NewBranchAndBound(solver.DefaultConfig(), log), scoring.DefaultModel(), models.DefaultRules())
}

func player(id int, pos models.Position, team string, price, points float64) models.Player {
	return models.Player{
		ID:               id,
		Name:             fmt.Sprintf("Player %02d", id),
		Team:             team,
		Position:         pos,
		Price:            price,
		ProjectedPoints:  points,
		IsRegularStarter: true,
	}
}

func mustDataset(t *testing.T, players []models.Player) *models.PlayerDataset {
	t.Helper()
	ds, err := models.NewPlayerDataset(players, 38)
	require.NoError(t, err)
	return ds
}

// exactSquad is fifteen players from fifteen clubs costing 95.0 in total
func exactSquad() []models.Player {
	return []models.Player{
		player(1, models.Goalkeeper, "ARS", 4.5, 120),
		player(2, models.Goalkeeper, "AVL", 5.0, 130),
		player(3, models.Defender, "BOU", 5.0, 110),
		player(4, models.Defender, "BRE", 5.0, 105),
		player(5, models.Defender, "BHA", 5.0, 100),
		player(6, models.Defender, "CHE", 5.0, 115),
		player(7, models.Defender, "CRY", 6.0, 140),
		player(8, models.Midfielder, "EVE", 7.0, 150),
		player(9, models.Midfielder, "FUL", 7.0, 145),
		player(10, models.Midfielder, "LIV", 7.0, 160),
		player(11, models.Midfielder, "MCI", 7.5, 170),
		player(12, models.Midfielder, "MUN", 8.5, 180),
		player(13, models.Forward, "NEW", 8.0, 175),
		player(14, models.Forward, "NFO", 7.5, 165),
		player(15, models.Forward, "TOT", 7.0, 150),
	}
}

func TestOptimize_ExactSquad(t *testing.T) {
	opt := newTestOptimizer(t)
	ds := mustDataset(t, exactSquad())

	sol, err := opt.Optimize(context.Background(), ds, models.DefaultOptimizationConfig())
	require.NoError(t, err)
	require.True(t, sol.Feasible)

	assert.Equal(t, string(solver.StatusOptimal), sol.SolverStatus)
	assert.Len(t, sol.SelectedIDs, 15)
	assert.InDelta(t, 95.0, sol.TotalPrice, 1e-9)
	assert.InDelta(t, 5.0, sol.BudgetRemaining(opt.Rules()), 1e-9)
	assert.InDelta(t, 2115.0, sol.TotalProjPoints, 1e-9)
	assert.InDelta(t, sol.TotalProjPoints, sol.ObjectiveValue, 1e-6)
	assert.InDelta(t, 3.0, sol.AvgFixtureDifficulty, 1e-9)
	assert.Equal(t, "raw_points", sol.Mode)
	assert.NotEmpty(t, sol.SolveID)
	assert.Equal(t, 15, sol.CandidateCount)

	assert.Equal(t, 2, sol.ByPositionCounts[models.Goalkeeper])
	assert.Equal(t, 3, sol.ByPositionCounts[models.Forward])
	assert.Equal(t, PositionSummary{Count: 2, TotalCost: 9.5, TotalPoints: 250}, sol.PositionSummary[models.Goalkeeper])
	for _, count := range sol.ByTeamCounts {
		assert.Equal(t, 1, count)
	}

	// ordered by position then name
	assert.Equal(t, models.Goalkeeper, sol.SelectedPlayers[0].Position)
	assert.Equal(t, models.Forward, sol.SelectedPlayers[14].Position)
	assert.Nil(t, sol.TotalFixtureAdjustedPoints)
	assert.Nil(t, sol.SelectedPlayers[0].FixtureAdjustedPoints)

	report := NewValidator(opt.Rules()).Validate(sol)
	assert.True(t, report.Valid)
}

func TestOptimize_FixtureWeightingPopulatesAdjustedFields(t *testing.T) {
	opt := newTestOptimizer(t)
	ds := mustDataset(t, exactSquad())

	cfg := models.DefaultOptimizationConfig()
	cfg.FixtureWeighting = 0.5
	sol, err := opt.Optimize(context.Background(), ds, cfg)
	require.NoError(t, err)
	require.True(t, sol.Feasible)

	require.NotNil(t, sol.TotalFixtureAdjustedPoints)
	// every player has neutral difficulty, so each keeps three quarters of its points
	assert.InDelta(t, 0.75*2115, *sol.TotalFixtureAdjustedPoints, 1e-6)
	assert.Nil(t, sol.TotalLastSeasonAdjustedPoints)
	require.NotNil(t, sol.SelectedPlayers[0].FixtureAdjustedPoints)
	assert.Nil(t, sol.SelectedPlayers[0].LastSeasonAdjustedPoints)
	assert.Equal(t, "fixture_adjusted(0.50)", sol.Mode)
}

func TestOptimize_ClubLimitInfeasible(t *testing.T) {
	opt := newTestOptimizer(t)

	clubs := []string{"ARS", "CHE", "LIV", "MCI"}
	layout := []models.Position{
		models.Goalkeeper, models.Goalkeeper, models.Goalkeeper,
		models.Defender, models.Defender, models.Defender, models.Defender, models.Defender,
		models.Midfielder, models.Midfielder, models.Midfielder, models.Midfielder, models.Midfielder,
		models.Forward, models.Forward, models.Forward,
	}
	players := make([]models.Player, len(layout))
	for i, pos := range layout {
		players[i] = player(i+1, pos, clubs[i%len(clubs)], 4.5, 100)
	}

	cfg := models.DefaultOptimizationConfig()
	cfg.MaxOnePerTeamPerPosition = false

	sol, err := opt.Optimize(context.Background(), mustDataset(t, players), cfg)
	require.NoError(t, err, "infeasible is a result, not an error")
	assert.False(t, sol.Feasible)
	assert.Equal(t, string(solver.StatusInfeasible), sol.SolverStatus)
	assert.Empty(t, sol.SelectedIDs)
	assert.NotNil(t, sol.SelectedPlayers)
	assert.Equal(t, 16, sol.CandidateCount)
}

func TestOptimize_BudgetInfeasible(t *testing.T) {
	opt := newTestOptimizer(t)

	players := exactSquad()
	for i := range players {
		players[i].Price = 7.0
	}

	sol, err := opt.Optimize(context.Background(), mustDataset(t, players), models.DefaultOptimizationConfig())
	require.NoError(t, err)
	assert.False(t, sol.Feasible)
	assert.Zero(t, sol.TotalPrice)
}

func TestOptimize_NoCandidatesIsInfeasible(t *testing.T) {
	opt := newTestOptimizer(t)

	players := exactSquad()
	for i := range players {
		players[i].IsRegularStarter = false
	}

	sol, err := opt.Optimize(context.Background(), mustDataset(t, players), models.DefaultOptimizationConfig())
	require.NoError(t, err)
	assert.False(t, sol.Feasible)
	assert.Zero(t, sol.CandidateCount)
}

func TestOptimize_InjuryFilter(t *testing.T) {
	opt := newTestOptimizer(t)

	players := exactSquad()
	// a cheaper, higher scoring keeper who is flagged
	injured := player(16, models.Goalkeeper, "WHU", 4.0, 200)
	injured.InjuryFlag = true
	players = append(players, injured)
	ds := mustDataset(t, players)

	cfg := models.DefaultOptimizationConfig()
	sol, err := opt.Optimize(context.Background(), ds, cfg)
	require.NoError(t, err)
	require.True(t, sol.Feasible)
	assert.NotContains(t, sol.SelectedIDs, 16)
	for _, p := range sol.SelectedPlayers {
		assert.False(t, p.InjuryFlag)
	}

	cfg.ExcludeInjuryRisk = false
	sol, err = opt.Optimize(context.Background(), ds, cfg)
	require.NoError(t, err)
	require.True(t, sol.Feasible)
	assert.Contains(t, sol.SelectedIDs, 16)
	assert.NotContains(t, sol.SelectedIDs, 1, "weakest keeper makes way")
}

func TestOptimize_Idempotent(t *testing.T) {
	opt := newTestOptimizer(t)
	ds := mustDataset(t, bruteForcePool())

	cfg := models.DefaultOptimizationConfig()
	cfg.RequireAllStarts = false

	first, err := opt.Optimize(context.Background(), ds, cfg)
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), ds, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.SelectedIDs, second.SelectedIDs)
	assert.Equal(t, first.ObjectiveValue, second.ObjectiveValue)
	assert.NotEqual(t, first.SolveID, second.SolveID)
}

func TestOptimize_InvalidInputs(t *testing.T) {
	opt := newTestOptimizer(t)

	_, err := opt.Optimize(context.Background(), nil, models.DefaultOptimizationConfig())
	assert.ErrorIs(t, err, models.ErrEmptyDataset)

	cfg := models.DefaultOptimizationConfig()
	cfg.FixtureWeighting = 0.2
	cfg.LastSeasonWeighting = 0.2
	_, err = opt.Optimize(context.Background(), mustDataset(t, exactSquad()), cfg)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
	assert.ErrorIs(t, err, models.ErrConflictingWeightings)
}

type stubSolver struct {
	err error
}

func (s stubSolver) Solve(ctx context.Context, m *solver.Model) (*solver.Result, error) {
	return nil, s.err
}

func TestOptimize_SolverErrors(t *testing.T) {
	logger.InitLogger("error", false).SetOutput(io.Discard)
	ds := mustDataset(t, exactSquad())
	cfg := models.DefaultOptimizationConfig()

	opt := NewOptimizer(stubSolver{err: solver.ErrLPFailure}, scoring.DefaultModel(), models.DefaultRules())
	_, err := opt.Optimize(context.Background(), ds, cfg)
	assert.ErrorIs(t, err, ErrSolverFailure)
	assert.ErrorIs(t, err, solver.ErrLPFailure)

	opt = NewOptimizer(stubSolver{err: context.DeadlineExceeded}, scoring.DefaultModel(), models.DefaultRules())
	sol, err := opt.Optimize(context.Background(), ds, cfg)
	assert.Nil(t, sol, "a timeout is never reported as infeasible")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrSolverFailure))
}

func TestOptimize_CancelledContext(t *testing.T) {
	opt := newTestOptimizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.Optimize(ctx, mustDataset(t, exactSquad()), models.DefaultOptimizationConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimize_GoalkeepersOnlyInfeasible(t *testing.T) {
	opt := newTestOptimizer(t)

	clubs := []string{"ARS", "CHE", "LIV", "MCI"}
	players := make([]models.Player, 0, 16)
	for i := 0; i < 16; i++ {
		players = append(players, player(i+1, models.Goalkeeper, clubs[i%len(clubs)], 4.0+float64(i)/10, 100-float64(i)))
	}

	sol, err := opt.Optimize(context.Background(), mustDataset(t, players), models.DefaultOptimizationConfig())
	require.NoError(t, err, "infeasible is a result, not an error")
	assert.False(t, sol.Feasible)
	assert.Equal(t, string(solver.StatusInfeasible), sol.SolverStatus)
	assert.Empty(t, sol.SelectedIDs)
	// one keeper per club survives the one-per-club-position dominance check
	assert.Equal(t, 4, sol.CandidateCount)
}

// largePool builds a realistic league: twenty clubs, prices 3.9 to 13.0 and
// points that track price with noise.
func largePool(n int, seed int64) []models.Player {
	rng := rand.New(rand.NewSource(seed))
	positions := []models.Position{
		models.Goalkeeper, models.Goalkeeper,
		models.Defender, models.Defender, models.Defender, models.Defender, models.Defender, models.Defender,
		models.Midfielder, models.Midfielder, models.Midfielder, models.Midfielder, models.Midfielder, models.Midfielder,
		models.Forward, models.Forward, models.Forward,
	}
	players := make([]models.Player, n)
	for i := range players {
		price := math.Round((3.9+rng.Float64()*9.1)*10) / 10
		points := math.Max(0, math.Round((price*15+rng.NormFloat64()*25)*10)/10)
		players[i] = player(i+1, positions[rng.Intn(len(positions))], fmt.Sprintf("C%02d", rng.Intn(20)), price, points)
	}
	return players
}

func TestOptimize_LargePoolWithinTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("large pool solve")
	}
	opt := newTestOptimizer(t)

	tests := []struct {
		name string
		size int
		cfg  models.OptimizationConfig
	}{
		{"max points", 600, models.OptimizationConfig{Objective: models.MaxPoints}},
		{"max points one per club position", 650, models.OptimizationConfig{Objective: models.MaxPoints, MaxOnePerTeamPerPosition: true}},
		{"max spend", 600, models.OptimizationConfig{Objective: models.MaxSpend}},
		{"max spend one per club position", 700, models.OptimizationConfig{Objective: models.MaxSpend, MaxOnePerTeamPerPosition: true}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := mustDataset(t, largePool(tt.size, int64(i+1)))
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			start := time.Now()
			sol, err := opt.Optimize(ctx, ds, tt.cfg)
			require.NoError(t, err)
			require.True(t, sol.Feasible)

			assert.Less(t, time.Since(start), 30*time.Second)
			assert.Equal(t, string(solver.StatusOptimal), sol.SolverStatus)
			assert.True(t, NewValidator(opt.Rules()).Validate(sol).Valid)
			if tt.cfg.Objective == models.MaxSpend {
				assert.InDelta(t, 100.0, sol.TotalPrice, 1e-9)
			}
		})
	}
}
