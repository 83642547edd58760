package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// DefaultGamesRemaining is used when a snapshot does not say how many gameweeks are left
const DefaultGamesRemaining = 38

var ErrEmptyDataset = errors.New("player dataset is empty")

// RejectedPlayer records a row dropped while building a dataset
type RejectedPlayer struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"name,omitempty"`
	Reason   string `json:"reason"`
}

// PlayerDataset is an immutable snapshot of eligible players.
// Callers must not mutate the slices returned by its accessors.
type PlayerDataset struct {
	players        []Player
	byID           map[int]int
	gamesRemaining int
	rejected       []RejectedPlayer
	fingerprint    string
}

// NewPlayerDataset validates rows, drops the malformed ones and freezes the rest.
// An empty input, or an input where every row is rejected, returns ErrEmptyDataset.
func NewPlayerDataset(players []Player, gamesRemaining int) (*PlayerDataset, error) {
	if len(players) == 0 {
		return nil, ErrEmptyDataset
	}
	if gamesRemaining <= 0 {
		gamesRemaining = DefaultGamesRemaining
	}

	ds := &PlayerDataset{
		players:        make([]Player, 0, len(players)),
		byID:           make(map[int]int, len(players)),
		gamesRemaining: gamesRemaining,
	}

	seen := make(map[int]bool, len(players))
	for _, p := range players {
		if err := p.Validate(); err != nil {
			ds.rejected = append(ds.rejected, RejectedPlayer{PlayerID: p.ID, Name: p.Name, Reason: err.Error()})
			continue
		}
		if seen[p.ID] {
			ds.rejected = append(ds.rejected, RejectedPlayer{PlayerID: p.ID, Name: p.Name, Reason: "duplicate player id"})
			continue
		}
		seen[p.ID] = true

		cp := p
		cp.Fixtures = append([]Fixture(nil), p.Fixtures...)
		ds.players = append(ds.players, cp)
	}

	if len(ds.players) == 0 {
		return nil, fmt.Errorf("%w: all %d rows rejected", ErrEmptyDataset, len(players))
	}

	sort.Slice(ds.players, func(i, j int) bool {
		return ds.players[i].ID < ds.players[j].ID
	})
	for i, p := range ds.players {
		ds.byID[p.ID] = i
	}
	ds.fingerprint = computeFingerprint(ds.players, gamesRemaining)

	return ds, nil
}

// Players returns the accepted players ordered by id
func (d *PlayerDataset) Players() []Player {
	return d.players
}

// Len returns the number of accepted players
func (d *PlayerDataset) Len() int {
	return len(d.players)
}

// Player looks up a player by id
func (d *PlayerDataset) Player(id int) (Player, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Player{}, false
	}
	return d.players[i], true
}

// GamesRemaining returns the gameweeks left in the season
func (d *PlayerDataset) GamesRemaining() int {
	return d.gamesRemaining
}

// Rejected returns the rows dropped during construction
func (d *PlayerDataset) Rejected() []RejectedPlayer {
	return d.rejected
}

// Fingerprint identifies the snapshot content; equal content gives equal fingerprints
func (d *PlayerDataset) Fingerprint() string {
	return d.fingerprint
}

// PositionCounts returns how many accepted players exist per position
func (d *PlayerDataset) PositionCounts() map[Position]int {
	counts := make(map[Position]int, len(Positions))
	for _, p := range d.players {
		counts[p.Position]++
	}
	return counts
}

func computeFingerprint(players []Player, gamesRemaining int) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(gamesRemaining)
	for _, p := range players {
		_ = enc.Encode(p)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
