package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/scoring"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/solver"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/logger"
)

// Optimizer turns a dataset and a config into a Solution. It holds no state
// between solves, so one Optimizer may serve concurrent callers.
type Optimizer struct {
	solver  solver.Solver
	scoring scoring.Model
	rules   models.LeagueRules
}

// NewOptimizer wires the solver, scoring policy and league rules together
func NewOptimizer(s solver.Solver, model scoring.Model, rules models.LeagueRules) *Optimizer {
	return &Optimizer{
		solver:  s,
		scoring: model,
		rules:   rules,
	}
}

// Rules returns the league rules the optimizer enforces
func (o *Optimizer) Rules() models.LeagueRules {
	return o.rules
}

// Optimize scores the dataset, builds the constraint set and solves it.
// An infeasible model yields a Solution with Feasible=false and a nil error.
func (o *Optimizer) Optimize(ctx context.Context, ds *models.PlayerDataset, cfg models.OptimizationConfig) (*Solution, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, models.ErrEmptyDataset
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	solveID := uuid.New().String()
	log := logger.WithSolveContext(solveID, mode.String())
	log.WithFields(logrus.Fields{
		"total_players":   ds.Len(),
		"games_remaining": ds.GamesRemaining(),
		"dataset":         ds.Fingerprint(),
	}).Info("Starting squad optimization")

	scored, err := o.scoring.Score(ds, cfg)
	if err != nil {
		return nil, err
	}

	cs := BuildConstraintSet(scored, cfg, o.rules)
	log.WithFields(logrus.Fields{
		"candidates":  len(cs.Candidates),
		"excluded":    cs.ExcludedCounts(),
		"constraints": len(cs.Constraints),
	}).Debug("Candidate pool built")

	return o.solve(ctx, cs, cfg, mode, solveID, log)
}

// Solve runs the solver over an already built constraint set
func (o *Optimizer) Solve(ctx context.Context, cs *ConstraintSet, cfg models.OptimizationConfig) (*Solution, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	solveID := uuid.New().String()
	return o.solve(ctx, cs, cfg, mode, solveID, logger.WithSolveContext(solveID, mode.String()))
}

func (o *Optimizer) solve(ctx context.Context, cs *ConstraintSet, cfg models.OptimizationConfig, mode models.ObjectiveMode, solveID string, log *logrus.Entry) (*Solution, error) {
	if len(cs.Candidates) == 0 {
		log.Warn("No candidates left after filtering")
		return infeasibleSolution(solveID, cfg, mode, 0), nil
	}

	start := time.Now()
	result, err := o.solver.Solve(ctx, cs.Model())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.WithError(err).Warn("Solve interrupted")
			return nil, fmt.Errorf("solve %s interrupted: %w", solveID, err)
		}
		log.WithError(err).Error("Solver failed")
		return nil, fmt.Errorf("%w: %w", ErrSolverFailure, err)
	}

	log.WithFields(logrus.Fields{
		"status":      result.Status,
		"objective":   result.Objective,
		"nodes":       result.Nodes,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Solver finished")

	if result.Status == solver.StatusInfeasible {
		sol := infeasibleSolution(solveID, cfg, mode, len(cs.Candidates))
		sol.NodesExplored = result.Nodes
		return sol, nil
	}

	selected := make([]models.ScoredPlayer, 0, o.rules.SquadSize)
	for i, on := range result.X {
		if on {
			selected = append(selected, cs.Candidates[i])
		}
	}

	sol := decodeSolution(selected, cfg, mode)
	sol.SolveID = solveID
	sol.SolverStatus = string(result.Status)
	sol.ObjectiveValue = result.Objective
	sol.CandidateCount = len(cs.Candidates)
	sol.NodesExplored = result.Nodes
	return sol, nil
}

func infeasibleSolution(solveID string, cfg models.OptimizationConfig, mode models.ObjectiveMode, candidates int) *Solution {
	return &Solution{
		SolveID:             solveID,
		Feasible:            false,
		SolverStatus:        string(solver.StatusInfeasible),
		Objective:           cfg.Objective,
		Mode:                mode.String(),
		FixtureWeighting:    cfg.FixtureWeighting,
		LastSeasonWeighting: cfg.LastSeasonWeighting,
		SelectedIDs:         []int{},
		SelectedPlayers:     []SelectedPlayer{},
		ByTeamCounts:        map[string]int{},
		ByPositionCounts:    map[models.Position]int{},
		PositionSummary:     map[models.Position]PositionSummary{},
		CandidateCount:      candidates,
	}
}

// decodeSolution computes the aggregate fields for a selected squad
func decodeSolution(selected []models.ScoredPlayer, cfg models.OptimizationConfig, mode models.ObjectiveMode) *Solution {
	sort.Slice(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.Position.Order() != b.Position.Order() {
			return a.Position.Order() < b.Position.Order()
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	sol := &Solution{
		Feasible:            true,
		Objective:           cfg.Objective,
		Mode:                mode.String(),
		FixtureWeighting:    cfg.FixtureWeighting,
		LastSeasonWeighting: cfg.LastSeasonWeighting,
		SelectedIDs:         make([]int, 0, len(selected)),
		SelectedPlayers:     make([]SelectedPlayer, 0, len(selected)),
		ByTeamCounts:        make(map[string]int),
		ByPositionCounts:    make(map[models.Position]int),
		PositionSummary:     make(map[models.Position]PositionSummary),
	}

	var (
		priceTenths     int64
		fixtureAdjusted float64
		historyAdjusted float64
		difficulties    = make([]float64, 0, len(selected))
	)

	for _, sp := range selected {
		priceTenths += sp.PriceTenths()
		sol.TotalProjPoints += sp.ProjectedPoints
		fixtureAdjusted += sp.FixtureAdjustedPoints
		historyAdjusted += sp.LastSeasonAdjustedPoints
		difficulties = append(difficulties, sp.AvgFixtureDifficulty)

		sol.SelectedIDs = append(sol.SelectedIDs, sp.ID)
		sol.SelectedPlayers = append(sol.SelectedPlayers, toSelectedPlayer(sp, cfg))
		sol.ByTeamCounts[sp.Team]++
		sol.ByPositionCounts[sp.Position]++

		summary := sol.PositionSummary[sp.Position]
		summary.Count++
		summary.TotalCost = float64(models.Tenths(summary.TotalCost)+sp.PriceTenths()) / 10
		summary.TotalPoints += sp.ProjectedPoints
		sol.PositionSummary[sp.Position] = summary
	}

	sol.TotalPrice = float64(priceTenths) / 10
	if len(difficulties) > 0 {
		sol.AvgFixtureDifficulty = stat.Mean(difficulties, nil)
	}
	if cfg.FixtureWeighting > 0 {
		sol.TotalFixtureAdjustedPoints = &fixtureAdjusted
	}
	if cfg.LastSeasonWeighting > 0 {
		sol.TotalLastSeasonAdjustedPoints = &historyAdjusted
	}
	return sol
}

func toSelectedPlayer(sp models.ScoredPlayer, cfg models.OptimizationConfig) SelectedPlayer {
	out := SelectedPlayer{
		ID:                    sp.ID,
		Name:                  sp.Name,
		Position:              sp.Position,
		Team:                  sp.Team,
		TeamName:              sp.TeamName,
		Price:                 float64(sp.PriceTenths()) / 10,
		ProjPoints:            sp.ProjectedPoints,
		AvgFixtureDifficulty5: sp.AvgFixtureDifficulty,
		Next5Fixtures:         sp.NextFixtures(5),
		InjuryFlag:            sp.InjuryFlag,
		IsRegularStarter:      sp.IsRegularStarter,
		ObjectiveCoefficient:  sp.ObjectiveCoefficient,
	}
	if cfg.FixtureWeighting > 0 {
		v := sp.FixtureAdjustedPoints
		out.FixtureAdjustedPoints = &v
	}
	if cfg.LastSeasonWeighting > 0 {
		current, last, adjusted := sp.CurrentPPG, sp.LastSeasonPPG(), sp.LastSeasonAdjustedPoints
		out.CurrentPointsPerGW = &current
		out.LastSeasonPointsPerGW = &last
		out.LastSeasonAdjustedPoints = &adjusted
	}
	return out
}
