package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
)

// Model holds the constants of the scoring policy. Every player is scored with
// the same constants so relative ranking only moves through the weightings.
type Model struct {
	FixtureHorizon    int     // fixtures averaged for the difficulty term
	DifficultyMin     float64 // easiest rating on the difficulty scale
	DifficultyMax     float64 // hardest rating on the difficulty scale
	NeutralDifficulty float64 // used when a player has no upcoming fixtures
}

// DefaultModel scores against the 1-5 difficulty scale over the next five fixtures
func DefaultModel() Model {
	return Model{
		FixtureHorizon:    5,
		DifficultyMin:     1,
		DifficultyMax:     5,
		NeutralDifficulty: 3,
	}
}

// Score attaches derived scores to every player of the dataset for one config.
// The returned slice follows dataset order.
func (m Model) Score(ds *models.PlayerDataset, cfg models.OptimizationConfig) ([]models.ScoredPlayer, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	players := ds.Players()
	scored := make([]models.ScoredPlayer, len(players))
	for i, p := range players {
		scored[i] = m.ScorePlayer(p, cfg, ds.GamesRemaining(), mode)
	}
	return scored, nil
}

// ScorePlayer derives the score fields of a single player
func (m Model) ScorePlayer(p models.Player, cfg models.OptimizationConfig, gamesRemaining int, mode models.ObjectiveMode) models.ScoredPlayer {
	avg := m.AverageDifficulty(p)
	current := CurrentPointsPerGW(p, gamesRemaining)

	sp := models.ScoredPlayer{
		Player:                   p,
		AvgFixtureDifficulty:     avg,
		FixtureAdjustedPoints:    m.FixtureAdjustedPoints(p.ProjectedPoints, avg, cfg.FixtureWeighting),
		CurrentPPG:               current,
		LastSeasonAdjustedPoints: HistoryAdjustedPoints(current, p.LastSeasonPPG(), cfg.LastSeasonWeighting, gamesRemaining),
	}
	sp.ObjectiveCoefficient = Coefficient(sp, mode)
	return sp
}

// AverageDifficulty is the mean difficulty of the next FixtureHorizon fixtures
func (m Model) AverageDifficulty(p models.Player) float64 {
	series := p.FixtureDifficultySeries()
	if len(series) > m.FixtureHorizon {
		series = series[:m.FixtureHorizon]
	}
	if len(series) == 0 {
		return m.NeutralDifficulty
	}
	values := make([]float64, len(series))
	for i, d := range series {
		values[i] = float64(d)
	}
	return stat.Mean(values, nil)
}

// Normalize maps a difficulty onto [0, 1]; harder fixtures map higher
func (m Model) Normalize(difficulty float64) float64 {
	span := m.DifficultyMax - m.DifficultyMin
	if span <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, (difficulty-m.DifficultyMin)/span))
}

// FixtureAdjustedPoints discounts projected points by the weighted fixture difficulty.
// The result is affine in the weighting.
func (m Model) FixtureAdjustedPoints(projected, avgDifficulty, weighting float64) float64 {
	return projected * (1 - weighting*m.Normalize(avgDifficulty))
}

// HistoryAdjustedPoints blends current and last season points per gameweek over the
// remaining games. The result is affine in the weighting.
func HistoryAdjustedPoints(currentPPG, lastSeasonPPG, weighting float64, gamesRemaining int) float64 {
	games := float64(gamesRemaining)
	return (1-weighting)*currentPPG*games + weighting*lastSeasonPPG*games
}

// CurrentPointsPerGW uses the reported figure or spreads projected points over the remaining games
func CurrentPointsPerGW(p models.Player, gamesRemaining int) float64 {
	if p.CurrentPointsPerGW != nil {
		return *p.CurrentPointsPerGW
	}
	if gamesRemaining <= 0 {
		return 0
	}
	return p.ProjectedPoints / float64(gamesRemaining)
}

// Coefficient picks the value the solver maximizes for the player
func Coefficient(sp models.ScoredPlayer, mode models.ObjectiveMode) float64 {
	switch mode.(type) {
	case models.FixtureAdjustedMode:
		return sp.FixtureAdjustedPoints
	case models.HistoryAdjustedMode:
		return sp.LastSeasonAdjustedPoints
	case models.MaxSpendMode:
		return float64(sp.PriceTenths()) / 10
	default:
		return sp.ProjectedPoints
	}
}
