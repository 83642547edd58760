package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/store"
)

func writeSnapshot(t *testing.T, price float64) string {
	t.Helper()
	positions := []models.Position{
		models.Goalkeeper, models.Goalkeeper,
		models.Defender, models.Defender, models.Defender, models.Defender, models.Defender,
		models.Midfielder, models.Midfielder, models.Midfielder, models.Midfielder, models.Midfielder,
		models.Forward, models.Forward, models.Forward,
	}
	snap := store.Snapshot{GamesRemaining: 38}
	for i, pos := range positions {
		snap.Players = append(snap.Players, models.Player{
			ID:               i + 1,
			Name:             fmt.Sprintf("Player %02d", i+1),
			Team:             fmt.Sprintf("C%02d", i+1),
			Position:         pos,
			Price:            price,
			ProjectedPoints:  100,
			IsRegularStarter: true,
		})
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "players.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSolveCommand_IDs(t *testing.T) {
	path := writeSnapshot(t, 6.0)

	out, err := execute(t, "--players", path, "--ids")
	require.NoError(t, err)
	assert.Equal(t, "1,2,3,4,5,6,7,8,9,10,11,12,13,14,15", strings.TrimSpace(out))
}

func TestSolveCommand_Table(t *testing.T) {
	path := writeSnapshot(t, 6.0)

	out, err := execute(t, "--players", path, "--fixture-weighting", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Player 01")
	assert.Contains(t, out, "90.0 / 100.0 (10.0 left)")
	assert.Contains(t, out, "Fixture adjusted")
}

func TestSolveCommand_Infeasible(t *testing.T) {
	path := writeSnapshot(t, 7.0)

	out, err := execute(t, "--players", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No feasible squad")

	_, err = execute(t, "--players", path, "--ids")
	assert.Error(t, err)
}

func TestSolveCommand_InvalidConfig(t *testing.T) {
	path := writeSnapshot(t, 6.0)

	_, err := execute(t, "--players", path, "--fixture-weighting", "0.3", "--last-season-weighting", "0.3")
	assert.ErrorIs(t, err, models.ErrConflictingWeightings)

	_, err = execute(t, "--players", path, "--objective", "max_value")
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestSolveCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "--players", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestImportCommand_RequiresArgument(t *testing.T) {
	_, err := execute(t, "import")
	assert.Error(t, err)
}
