package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
)

// Snapshot is the on-disk shape produced by the data processing step
type Snapshot struct {
	GamesRemaining int             `json:"games_remaining"`
	Players        []models.Player `json:"players"`
}

// ReadSnapshot decodes a snapshot document
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode player snapshot: %w", err)
	}
	return &snap, nil
}

// ReadSnapshotFile opens and decodes a snapshot file
func ReadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open player snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// Dataset normalizes position codes and builds the immutable dataset.
// gamesRemaining overrides the snapshot value when positive.
func (s *Snapshot) Dataset(gamesRemaining int) (*models.PlayerDataset, error) {
	if gamesRemaining <= 0 {
		gamesRemaining = s.GamesRemaining
	}
	players := make([]models.Player, len(s.Players))
	for i, p := range s.Players {
		if pos, err := models.ParsePosition(string(p.Position)); err == nil {
			p.Position = pos
		}
		players[i] = p
	}
	return models.NewPlayerDataset(players, gamesRemaining)
}

// LoadFile reads a snapshot file straight into a dataset
func LoadFile(path string, gamesRemaining int) (*models.PlayerDataset, error) {
	snap, err := ReadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	return snap.Dataset(gamesRemaining)
}
