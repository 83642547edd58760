package reload

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sampleDataset(t *testing.T) *models.PlayerDataset {
	t.Helper()
	ds, err := models.NewPlayerDataset([]models.Player{
		{ID: 1, Name: "A", Team: "ARS", Position: models.Goalkeeper, Price: 4.5},
	}, 38)
	require.NoError(t, err)
	return ds
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler("every tuesday", nil, 0, quietLogger())
	assert.Error(t, err)
}

func TestScheduler_NextRun(t *testing.T) {
	s, err := NewScheduler("@every 6h", nil, 0, quietLogger())
	require.NoError(t, err)
	assert.True(t, s.NextRun().IsZero(), "no next run before start")

	s.Start()
	defer s.Stop()
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), s.NextRun(), time.Minute)
}

func TestScheduler_RunCountsFailures(t *testing.T) {
	ds := sampleDataset(t)
	calls := 0
	s, err := NewScheduler("0 4 * * *", func(ctx context.Context) (*models.PlayerDataset, error) {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if calls == 2 {
			return nil, errors.New("source unavailable")
		}
		return ds, nil
	}, time.Minute, quietLogger())
	require.NoError(t, err)

	s.run()
	s.run()
	s.run()

	runs, failures := s.Stats()
	assert.Equal(t, int64(3), runs)
	assert.Equal(t, int64(1), failures)
	assert.Equal(t, 3, calls)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	ds := sampleDataset(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s, err := NewScheduler("@hourly", func(ctx context.Context) (*models.PlayerDataset, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return ds, nil
	}, 0, quietLogger())
	require.NoError(t, err)

	job := s.job()
	require.NotNil(t, job)

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-started

	// a tick that lands while the first reload blocks is dropped
	job.Run()
	close(release)
	<-done

	runs, failures := s.Stats()
	assert.Equal(t, int64(1), runs)
	assert.Zero(t, failures)
	assert.Equal(t, int32(1), calls.Load())

	// the guard is released once the reload returns
	job.Run()
	runs, _ = s.Stats()
	assert.Equal(t, int64(2), runs)
}

func TestScheduler_RecoversFromPanickingReload(t *testing.T) {
	s, err := NewScheduler("@hourly", func(ctx context.Context) (*models.PlayerDataset, error) {
		panic("snapshot decoder blew up")
	}, 0, quietLogger())
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.job().Run() })
	assert.NotPanics(t, func() { s.job().Run() }, "skip guard is released after a panic")

	runs, _ := s.Stats()
	assert.Equal(t, int64(2), runs)
}
