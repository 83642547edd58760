package reload

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
)

// ReloadFunc refreshes the served player snapshot
type ReloadFunc func(ctx context.Context) (*models.PlayerDataset, error)

// Scheduler refreshes the player snapshot on a cron schedule, e.g. after the
// nightly data processing run.
type Scheduler struct {
	cron     *cron.Cron
	reload   ReloadFunc
	timeout  time.Duration
	logger   *logrus.Logger
	entry    cron.EntryID
	runs     atomic.Int64
	failures atomic.Int64
}

// NewScheduler parses schedule (standard five-field cron or descriptors like "@every 6h").
// A tick that fires while the previous reload is still going is skipped.
func NewScheduler(schedule string, reload ReloadFunc, timeout time.Duration, logger *logrus.Logger) (*Scheduler, error) {
	cronLogger := cron.VerbosePrintfLogger(logger)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		reload:  reload,
		timeout: timeout,
		logger:  logger,
	}
	entry, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}
	s.entry = entry
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("next_run", s.NextRun()).Info("Snapshot reload scheduler started")
}

// Stop waits for a running reload to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// NextRun returns when the next reload fires, zero before Start
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}

// job is the scheduled reload wrapped in the cron chain
func (s *Scheduler) job() cron.Job {
	return s.cron.Entry(s.entry).WrappedJob
}

// Stats returns how many reloads ran and how many failed
func (s *Scheduler) Stats() (runs, failures int64) {
	return s.runs.Load(), s.failures.Load()
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.runs.Add(1)
	start := time.Now()
	ds, err := s.reload(ctx)
	if err != nil {
		s.failures.Add(1)
		s.logger.WithError(err).Error("Scheduled snapshot reload failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"players":     ds.Len(),
		"fingerprint": ds.Fingerprint(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Scheduled snapshot reload finished")
}
