// Package scheduler repeats incremental extraction runs on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// runTimeout bounds one scheduled extraction run.
const runTimeout = 2 * time.Hour

// RunFunc executes one extraction run.
type RunFunc func(ctx context.Context) error

// Scheduler triggers runs on a cron expression. Runs that fail are logged
// and the schedule keeps going; a stuck run is cut off by runTimeout.
type Scheduler struct {
	ctx    context.Context
	spec   string
	run    RunFunc
	logger *logrus.Logger
	cron   *cron.Cron
}

// New creates a scheduler for the given cron spec.
func New(ctx context.Context, spec string, run RunFunc, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		ctx:    ctx,
		spec:   spec,
		run:    run,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.collect); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("cron", s.spec).Info("scheduler started")
	return nil
}

func (s *Scheduler) collect() {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	if err := s.run(ctx); err != nil {
		s.logger.WithError(err).Error("scheduled extraction run failed")
	}
}

// Stop stops the cron loop; running jobs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
