package models

// LeagueRules holds the hard squad rules of the league
type LeagueRules struct {
	BudgetTenths          int64            `json:"budget_tenths"`
	SquadSize             int              `json:"squad_size"`
	PositionQuota         map[Position]int `json:"position_quota"`
	MaxPerClub            int              `json:"max_per_club"`
	MaxPerClubPerPosition int              `json:"max_per_club_per_position"`
}

// DefaultRules returns the standard 100.0 budget, 2-5-5-3 squad with at most 3 per club
func DefaultRules() LeagueRules {
	return LeagueRules{
		BudgetTenths: 1000,
		SquadSize:    15,
		PositionQuota: map[Position]int{
			Goalkeeper: 2,
			Defender:   5,
			Midfielder: 5,
			Forward:    3,
		},
		MaxPerClub:            3,
		MaxPerClubPerPosition: 1,
	}
}

// Budget returns the budget in millions
func (r LeagueRules) Budget() float64 {
	return float64(r.BudgetTenths) / 10
}
