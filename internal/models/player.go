package models

import (
	"fmt"
	"math"
	"strings"
)

// Position is a squad position in the league
type Position string

const (
	Goalkeeper Position = "GKP"
	Defender   Position = "DEF"
	Midfielder Position = "MID"
	Forward    Position = "FWD"
)

// Positions lists every position in display order
var Positions = []Position{Goalkeeper, Defender, Midfielder, Forward}

// Valid reports whether p is one of the four league positions
func (p Position) Valid() bool {
	switch p {
	case Goalkeeper, Defender, Midfielder, Forward:
		return true
	}
	return false
}

// Order returns the display rank of the position (GKP first)
func (p Position) Order() int {
	for i, pos := range Positions {
		if pos == p {
			return i
		}
	}
	return len(Positions)
}

// ParsePosition accepts the short codes plus the long names used by some exports
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GKP", "GK", "GOALKEEPER":
		return Goalkeeper, nil
	case "DEF", "DEFENDER":
		return Defender, nil
	case "MID", "MIDFIELDER":
		return Midfielder, nil
	case "FWD", "FW", "FORWARD":
		return Forward, nil
	}
	return "", fmt.Errorf("unknown position %q", s)
}

// Fixture is one upcoming match from the player's club perspective
type Fixture struct {
	Opponent   string `json:"opponent"`
	Home       bool   `json:"home"`
	Difficulty int    `json:"difficulty"`
}

// String renders the fixture as "ARS(H)"
func (f Fixture) String() string {
	venue := "A"
	if f.Home {
		venue = "H"
	}
	return fmt.Sprintf("%s(%s)", f.Opponent, venue)
}

// Player is one row of the player dataset
type Player struct {
	ID                    int       `json:"id"`
	Name                  string    `json:"name"`
	Team                  string    `json:"team"`
	TeamName              string    `json:"team_name,omitempty"`
	Position              Position  `json:"position"`
	Price                 float64   `json:"price"`
	ProjectedPoints       float64   `json:"projected_points"`
	Fixtures              []Fixture `json:"fixtures,omitempty"`
	IsRegularStarter      bool      `json:"is_regular_starter"`
	InjuryFlag            bool      `json:"injury_flag"`
	CurrentPointsPerGW    *float64  `json:"current_points_per_gw,omitempty"`
	LastSeasonPointsPerGW *float64  `json:"last_season_points_per_gw,omitempty"`
}

// FixtureDifficultySeries returns the difficulty ratings of upcoming fixtures in order
func (p Player) FixtureDifficultySeries() []int {
	series := make([]int, len(p.Fixtures))
	for i, f := range p.Fixtures {
		series[i] = f.Difficulty
	}
	return series
}

// NextFixtures renders the first n fixtures, e.g. "ARS(H), che(A)"
func (p Player) NextFixtures(n int) string {
	if n > len(p.Fixtures) {
		n = len(p.Fixtures)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = p.Fixtures[i].String()
	}
	return strings.Join(parts, ", ")
}

// LastSeasonPPG returns last season's points per gameweek, 0 when unknown
func (p Player) LastSeasonPPG() float64 {
	if p.LastSeasonPointsPerGW == nil {
		return 0
	}
	return *p.LastSeasonPointsPerGW
}

// PriceTenths returns the price in tenths of a million
func (p Player) PriceTenths() int64 {
	return Tenths(p.Price)
}

// Validate checks the fields that cannot be defaulted
func (p Player) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("player id must be positive, got %d", p.ID)
	}
	if !p.Position.Valid() {
		return fmt.Errorf("player %d has invalid position %q", p.ID, p.Position)
	}
	if math.IsNaN(p.Price) || p.PriceTenths() <= 0 {
		return fmt.Errorf("player %d has non-positive price %.1f", p.ID, p.Price)
	}
	if strings.TrimSpace(p.Team) == "" {
		return fmt.Errorf("player %d has no team", p.ID)
	}
	return nil
}

// Tenths converts a price in millions to integral tenths
func Tenths(price float64) int64 {
	return int64(math.Round(price * 10))
}

// ScoredPlayer is a Player with the score fields derived for one configuration
type ScoredPlayer struct {
	Player
	AvgFixtureDifficulty     float64 `json:"avg_fixture_difficulty_5"`
	FixtureAdjustedPoints    float64 `json:"fixture_adjusted_points"`
	CurrentPPG               float64 `json:"current_ppg"`
	LastSeasonAdjustedPoints float64 `json:"last_season_adjusted_points"`
	ObjectiveCoefficient     float64 `json:"objective_coefficient"`
}
