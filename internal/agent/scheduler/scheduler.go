// Package scheduler runs update sweeps on a fixed interval or a cron
// expression, cron winning when both are configured. The clock-driven
// select loop is carried over from the teacher's engine.Scheduler; cron
// support is new, since the teacher only offered a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoisterhq/hoister/internal/clock"
	"github.com/hoisterhq/hoister/internal/logging"
	"github.com/hoisterhq/hoister/internal/metrics"
)

// Config carries the two mutually-exclusive schedule sources.
type Config struct {
	Interval time.Duration // schedule.interval, in seconds per spec but stored as a Duration
	Cron     string        // schedule.cron, six fields (seconds through day-of-week) or a descriptor like "@hourly"; a seventh (year) field is not accepted; wins when set
}

// SweepFunc runs one update sweep. It is given the context of the
// scheduler's Run call.
type SweepFunc func(ctx context.Context)

// Scheduler drives SweepFunc at each computed wake time.
type Scheduler struct {
	cfg      Config
	sweep    SweepFunc
	clk      clock.Clock
	log      *logging.Logger
	cronSpec cron.Schedule
}

// New builds a Scheduler. An invalid cron expression is a ConfigError,
// returned immediately rather than discovered at the first tick.
func New(cfg Config, sweep SweepFunc, clk clock.Clock, log *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{cfg: cfg, sweep: sweep, clk: clk, log: log}
	if cfg.Cron != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		sched, err := parser.Parse(cfg.Cron)
		if err != nil {
			return nil, err
		}
		s.cronSpec = sched
	}
	return s, nil
}

// usesCron reports whether cron wins over the fixed interval, per spec §4.2
// and §9 ("when both are configured, cron wins").
func (s *Scheduler) usesCron() bool {
	return s.cronSpec != nil
}

// nextWake computes the duration to sleep before the next sweep.
func (s *Scheduler) nextWake() time.Duration {
	now := s.clk.Now()
	if s.usesCron() {
		next := s.cronSpec.Next(now)
		d := next.Sub(now)
		if d < 0 {
			return 0
		}
		return d
	}
	return s.cfg.Interval
}

// Run performs an initial sweep immediately, then sweeps at each computed
// wake time until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("starting initial sweep")
	s.runSweep(ctx)

	for {
		wait := s.nextWake()
		select {
		case <-s.clk.After(wait):
			s.log.Info("starting scheduled sweep", "cron", s.usesCron())
			s.runSweep(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	start := s.clk.Now()
	s.sweep(ctx)
	metrics.SweepsTotal.Inc()
	metrics.SweepDuration.Observe(s.clk.Since(start).Seconds())
}
