package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/database"
)

// PlayerRecord is the persisted form of a player row
type PlayerRecord struct {
	ID                    int              `gorm:"primaryKey;autoIncrement:false"`
	Name                  string           `gorm:"not null"`
	Team                  string           `gorm:"index;not null"`
	TeamName              string
	Position              string           `gorm:"index;not null"`
	Price                 float64          `gorm:"not null"`
	ProjectedPoints       float64
	Fixtures              []models.Fixture `gorm:"serializer:json;type:text"`
	IsRegularStarter      bool
	InjuryFlag            bool
	CurrentPointsPerGW    *float64
	LastSeasonPointsPerGW *float64
	UpdatedAt             time.Time
}

func (PlayerRecord) TableName() string {
	return database.PlayersTable
}

// SnapshotMeta keeps the season context of the stored players in a single row
type SnapshotMeta struct {
	ID             uint `gorm:"primaryKey"`
	GamesRemaining int
	PlayerCount    int
	UpdatedAt      time.Time
}

func (SnapshotMeta) TableName() string {
	return database.SnapshotMetaTable
}

func newPlayerRecord(p models.Player) PlayerRecord {
	return PlayerRecord{
		ID:                    p.ID,
		Name:                  p.Name,
		Team:                  p.Team,
		TeamName:              p.TeamName,
		Position:              string(p.Position),
		Price:                 p.Price,
		ProjectedPoints:       p.ProjectedPoints,
		Fixtures:              p.Fixtures,
		IsRegularStarter:      p.IsRegularStarter,
		InjuryFlag:            p.InjuryFlag,
		CurrentPointsPerGW:    p.CurrentPointsPerGW,
		LastSeasonPointsPerGW: p.LastSeasonPointsPerGW,
	}
}

func (r PlayerRecord) toPlayer() models.Player {
	return models.Player{
		ID:                    r.ID,
		Name:                  r.Name,
		Team:                  r.Team,
		TeamName:              r.TeamName,
		Position:              models.Position(r.Position),
		Price:                 r.Price,
		ProjectedPoints:       r.ProjectedPoints,
		Fixtures:              r.Fixtures,
		IsRegularStarter:      r.IsRegularStarter,
		InjuryFlag:            r.InjuryFlag,
		CurrentPointsPerGW:    r.CurrentPointsPerGW,
		LastSeasonPointsPerGW: r.LastSeasonPointsPerGW,
	}
}

// PlayerRepository loads and replaces player snapshots in the database
type PlayerRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewPlayerRepository(db *gorm.DB, logger *logrus.Logger) *PlayerRepository {
	return &PlayerRepository{db: db, logger: logger}
}

// Migrate creates or updates the player tables
func (r *PlayerRepository) Migrate() error {
	if err := r.db.AutoMigrate(&PlayerRecord{}, &SnapshotMeta{}); err != nil {
		return fmt.Errorf("failed to migrate player tables: %w", err)
	}
	return nil
}

// ReplaceAll swaps the stored snapshot for snap in one transaction
func (r *PlayerRepository) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	records := make([]PlayerRecord, len(snap.Players))
	for i, p := range snap.Players {
		records[i] = newPlayerRecord(p)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PlayerRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear players: %w", err)
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 200).Error; err != nil {
				return fmt.Errorf("failed to insert players: %w", err)
			}
		}
		meta := SnapshotMeta{ID: 1, GamesRemaining: snap.GamesRemaining, PlayerCount: len(records)}
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("failed to save snapshot meta: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"players":         len(records),
		"games_remaining": snap.GamesRemaining,
	}).Info("Replaced player snapshot")
	return nil
}

// LoadDataset reads every stored player into a dataset.
// gamesRemaining overrides the stored value when positive.
func (r *PlayerRepository) LoadDataset(ctx context.Context, gamesRemaining int) (*models.PlayerDataset, error) {
	var records []PlayerRecord
	if err := r.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	if gamesRemaining <= 0 {
		var meta SnapshotMeta
		err := r.db.WithContext(ctx).First(&meta, 1).Error
		switch {
		case err == nil:
			gamesRemaining = meta.GamesRemaining
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to load snapshot meta: %w", err)
		}
	}

	players := make([]models.Player, len(records))
	for i, rec := range records {
		players[i] = rec.toPlayer()
	}

	ds, err := models.NewPlayerDataset(players, gamesRemaining)
	if err != nil {
		return nil, err
	}
	if rejected := ds.Rejected(); len(rejected) > 0 {
		r.logger.WithField("rejected", len(rejected)).Warn("Some stored players were rejected")
	}
	return ds, nil
}
