package optimizer

import (
	"fmt"
	"sort"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/solver"
)

// Exclusion records why a player was removed from the candidate pool
type Exclusion struct {
	PlayerID int    `json:"player_id"`
	Reason   string `json:"reason"`
}

const (
	ReasonNotRegularStarter = "not_regular_starter"
	ReasonInjuryRisk        = "injury_risk"
	ReasonDominated         = "dominated"
)

// ConstraintSet is the filtered candidate pool plus the linear constraints over it.
// Variable i of every constraint refers to Candidates[i].
type ConstraintSet struct {
	Candidates  []models.ScoredPlayer
	Excluded    []Exclusion
	Constraints []solver.Constraint
	Rules       models.LeagueRules
}

// BuildConstraintSet applies the hard filters of cfg and encodes the league rules
func BuildConstraintSet(scored []models.ScoredPlayer, cfg models.OptimizationConfig, rules models.LeagueRules) *ConstraintSet {
	cs := &ConstraintSet{
		Candidates: make([]models.ScoredPlayer, 0, len(scored)),
		Rules:      rules,
	}

	for _, sp := range scored {
		switch {
		case cfg.RequireAllStarts && !sp.IsRegularStarter:
			cs.Excluded = append(cs.Excluded, Exclusion{PlayerID: sp.ID, Reason: ReasonNotRegularStarter})
		case cfg.ExcludeInjuryRisk && sp.InjuryFlag:
			cs.Excluded = append(cs.Excluded, Exclusion{PlayerID: sp.ID, Reason: ReasonInjuryRisk})
		default:
			cs.Candidates = append(cs.Candidates, sp)
		}
	}

	sort.SliceStable(cs.Candidates, func(i, j int) bool {
		return cs.Candidates[i].ID < cs.Candidates[j].ID
	})
	cs.pruneDominated(cfg.MaxOnePerTeamPerPosition)

	cs.addSquadSize()
	cs.addPositionQuotas()
	cs.addBudget()
	cs.addClubLimits()
	if cfg.MaxOnePerTeamPerPosition {
		cs.addClubPositionLimits()
	}

	return cs
}

// pruneDominated drops players no optimal squad needs. At most limit players of
// one club and position can be picked, so a player with at least limit rivals
// from the same club and position that cost no more and score no less can
// always be swapped for one of them.
func (cs *ConstraintSet) pruneDominated(onePerClubPosition bool) {
	groups := make(map[string][]int)
	for i, sp := range cs.Candidates {
		key := sp.Team + "/" + string(sp.Position)
		groups[key] = append(groups[key], i)
	}

	drop := make([]bool, len(cs.Candidates))
	for _, members := range groups {
		limit := cs.clubPositionLimit(cs.Candidates[members[0]].Position, onePerClubPosition)
		if limit < 1 || len(members) <= limit {
			continue
		}
		for _, i := range members {
			rivals := 0
			for _, j := range members {
				if i != j && dominates(cs.Candidates[j], cs.Candidates[i]) {
					rivals++
				}
			}
			drop[i] = rivals >= limit
		}
	}

	kept := cs.Candidates[:0]
	for i, sp := range cs.Candidates {
		if drop[i] {
			cs.Excluded = append(cs.Excluded, Exclusion{PlayerID: sp.ID, Reason: ReasonDominated})
			continue
		}
		kept = append(kept, sp)
	}
	cs.Candidates = kept
}

// clubPositionLimit is the most players of one club and position a squad can hold
func (cs *ConstraintSet) clubPositionLimit(pos models.Position, onePerClubPosition bool) int {
	limit := min(cs.Rules.PositionQuota[pos], cs.Rules.MaxPerClub)
	if onePerClubPosition {
		limit = min(limit, cs.Rules.MaxPerClubPerPosition)
	}
	return limit
}

// dominates orders players by price and coefficient, breaking exact ties by id
// so two identical players never remove each other.
func dominates(q, p models.ScoredPlayer) bool {
	qPrice, pPrice := q.PriceTenths(), p.PriceTenths()
	if qPrice > pPrice || q.ObjectiveCoefficient < p.ObjectiveCoefficient {
		return false
	}
	return qPrice < pPrice || q.ObjectiveCoefficient > p.ObjectiveCoefficient || q.ID < p.ID
}

func (cs *ConstraintSet) addSquadSize() {
	terms := make([]solver.Term, len(cs.Candidates))
	for i := range cs.Candidates {
		terms[i] = solver.Term{Var: i, Coef: 1}
	}
	cs.Constraints = append(cs.Constraints, solver.Constraint{
		Name:  "squad_size",
		Terms: terms,
		Sense: solver.Equal,
		RHS:   float64(cs.Rules.SquadSize),
	})
}

func (cs *ConstraintSet) addPositionQuotas() {
	byPosition := make(map[models.Position][]solver.Term)
	for i, sp := range cs.Candidates {
		byPosition[sp.Position] = append(byPosition[sp.Position], solver.Term{Var: i, Coef: 1})
	}
	for _, pos := range models.Positions {
		cs.Constraints = append(cs.Constraints, solver.Constraint{
			Name:  fmt.Sprintf("position_%s", pos),
			Terms: byPosition[pos],
			Sense: solver.Equal,
			RHS:   float64(cs.Rules.PositionQuota[pos]),
		})
	}
}

// addBudget works in tenths so the coefficients stay integral
func (cs *ConstraintSet) addBudget() {
	terms := make([]solver.Term, len(cs.Candidates))
	for i, sp := range cs.Candidates {
		terms[i] = solver.Term{Var: i, Coef: float64(sp.PriceTenths())}
	}
	cs.Constraints = append(cs.Constraints, solver.Constraint{
		Name:  "budget",
		Terms: terms,
		Sense: solver.LessEqual,
		RHS:   float64(cs.Rules.BudgetTenths),
	})
}

func (cs *ConstraintSet) addClubLimits() {
	byClub := make(map[string][]solver.Term)
	for i, sp := range cs.Candidates {
		byClub[sp.Team] = append(byClub[sp.Team], solver.Term{Var: i, Coef: 1})
	}
	for _, club := range sortedKeys(byClub) {
		if len(byClub[club]) <= cs.Rules.MaxPerClub {
			continue
		}
		cs.Constraints = append(cs.Constraints, solver.Constraint{
			Name:  fmt.Sprintf("club_%s", club),
			Terms: byClub[club],
			Sense: solver.LessEqual,
			RHS:   float64(cs.Rules.MaxPerClub),
		})
	}
}

func (cs *ConstraintSet) addClubPositionLimits() {
	byPair := make(map[string][]solver.Term)
	for i, sp := range cs.Candidates {
		key := fmt.Sprintf("%s_%s", sp.Team, sp.Position)
		byPair[key] = append(byPair[key], solver.Term{Var: i, Coef: 1})
	}
	for _, key := range sortedKeys(byPair) {
		if len(byPair[key]) <= cs.Rules.MaxPerClubPerPosition {
			continue
		}
		cs.Constraints = append(cs.Constraints, solver.Constraint{
			Name:  fmt.Sprintf("club_position_%s", key),
			Terms: byPair[key],
			Sense: solver.LessEqual,
			RHS:   float64(cs.Rules.MaxPerClubPerPosition),
		})
	}
}

// Model builds the binary maximization model for the candidate pool
func (cs *ConstraintSet) Model() *solver.Model {
	objective := make([]float64, len(cs.Candidates))
	for i, sp := range cs.Candidates {
		objective[i] = sp.ObjectiveCoefficient
	}
	return &solver.Model{
		NumVars:     len(cs.Candidates),
		Objective:   objective,
		Constraints: cs.Constraints,
	}
}

// ExcludedCounts tallies exclusions per reason
func (cs *ConstraintSet) ExcludedCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range cs.Excluded {
		counts[e.Reason]++
	}
	return counts
}

func sortedKeys(m map[string][]solver.Term) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
