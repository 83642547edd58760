package optimizer

import (
	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
)

// Validator re-derives the league rule checks from a Solution's players.
// It never looks at the solver status, so it works on hand-built solutions too.
type Validator struct {
	rules models.LeagueRules
}

// NewValidator creates a validator for the given rules
func NewValidator(rules models.LeagueRules) *Validator {
	return &Validator{rules: rules}
}

// Validate checks squad size, budget, position split and club limits
func (v *Validator) Validate(sol *Solution) ValidationReport {
	if sol == nil {
		return ValidationReport{}
	}
	players := sol.SelectedPlayers

	report := ValidationReport{
		SquadSize:  v.checkSquadSize(players),
		Budget:     v.checkBudget(players),
		Positions:  v.checkPositions(players),
		ClubLimits: v.checkClubLimits(players),
	}
	report.Valid = report.SquadSize && report.Budget && report.Positions && report.ClubLimits
	return report
}

// checkSquadSize counts distinct ids so a repeated player cannot pad the squad
func (v *Validator) checkSquadSize(players []SelectedPlayer) bool {
	ids := make(map[int]bool, len(players))
	for _, p := range players {
		ids[p.ID] = true
	}
	return len(ids) == v.rules.SquadSize && len(players) == v.rules.SquadSize
}

func (v *Validator) checkBudget(players []SelectedPlayer) bool {
	var total int64
	for _, p := range players {
		total += models.Tenths(p.Price)
	}
	return total <= v.rules.BudgetTenths
}

func (v *Validator) checkPositions(players []SelectedPlayer) bool {
	counts := make(map[models.Position]int, len(models.Positions))
	for _, p := range players {
		if !p.Position.Valid() {
			return false
		}
		counts[p.Position]++
	}
	for _, pos := range models.Positions {
		if counts[pos] != v.rules.PositionQuota[pos] {
			return false
		}
	}
	return true
}

func (v *Validator) checkClubLimits(players []SelectedPlayer) bool {
	counts := make(map[string]int)
	for _, p := range players {
		counts[p.Team]++
		if counts[p.Team] > v.rules.MaxPerClub {
			return false
		}
	}
	return true
}
