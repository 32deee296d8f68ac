package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/scribeworks/backend/internal/metrics"
)

// Sweeper runs ReleaseExpiredLocks on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	registry *TaskRegistry
	metrics  metrics.Recorder
	log      logrus.FieldLogger
	timeout  time.Duration
}

// NewSweeper schedules the expiry sweep, e.g. "@every 1m" or "*/5 * * * *".
func NewSweeper(registry *TaskRegistry, schedule string, rec metrics.Recorder, log logrus.FieldLogger) (*Sweeper, error) {
	if rec == nil {
		rec = metrics.NewNoOpCollector()
	}
	s := &Sweeper{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		registry: registry,
		metrics:  rec,
		log:      log.WithField("component", "sweeper"),
		timeout:  time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("[SWEEP] started")
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("[SWEEP] stopped")
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Sweep(ctx, time.Now().UTC())
}

// Sweep releases every lock expired at now and returns how many were released.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	start := time.Now()
	released, err := s.registry.ReleaseExpiredLocks(ctx, now)
	s.metrics.RecordSweep(released, time.Since(start))

	if err != nil {
		s.log.WithError(err).WithField("released", released).Error("[SWEEP] some locks could not be released")
	} else if released > 0 {
		s.log.WithField("released", released).Info("[SWEEP] expired locks released")
	}
	return released
}
