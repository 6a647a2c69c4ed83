// Package jobs runs periodic housekeeping: evicting idle consultations and
// pruning the brief archive.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/ashureev/campaign-consult/internal/store"
)

// Defaults for Config.
const (
	DefaultSweepInterval  = 5 * time.Minute
	DefaultBriefRetention = 30 * 24 * time.Hour
	pruneInterval         = time.Hour
	pruneTimeout          = 30 * time.Second
)

// Sweeper evicts expired sessions and returns how many it removed.
type Sweeper interface {
	Sweep() int
}

// Config configures the scheduler.
type Config struct {
	Sessions       Sweeper
	Repo           store.Repository
	SweepInterval  time.Duration
	BriefRetention time.Duration

	// AfterSweep runs after every session sweep, e.g. to drop idle rate
	// limiters and replay entries.
	AfterSweep []func()
	Logger     *slog.Logger
}

// Scheduler owns the background jobs.
type Scheduler struct {
	cfg   Config
	sched gocron.Scheduler
}

// New registers the jobs without starting them.
func New(cfg Config) (*Scheduler, error) {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.BriefRetention <= 0 {
		cfg.BriefRetention = DefaultBriefRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s := &Scheduler{cfg: cfg, sched: sched}

	if cfg.Sessions != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.SweepInterval),
			gocron.NewTask(s.SweepSessions),
			gocron.WithName("session-sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule session sweep: %w", err)
		}
	}
	if cfg.Repo != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(pruneInterval),
			gocron.NewTask(func() { _, _ = s.PruneBriefs(context.Background()) }),
			gocron.WithName("brief-prune"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule brief pruning: %w", err)
		}
	}
	return s, nil
}

// Run starts the jobs and blocks until ctx is done, then waits for running
// jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sched.Start()
	s.cfg.Logger.Info("background jobs started",
		"sweep_interval", s.cfg.SweepInterval,
		"brief_retention", s.cfg.BriefRetention)

	<-ctx.Done()
	s.cfg.Logger.Info("background jobs shutting down", "reason", ctx.Err())
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

// Stop shuts the scheduler down without Run having been called.
func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// SweepSessions evicts expired consultations.
func (s *Scheduler) SweepSessions() {
	n := s.cfg.Sessions.Sweep()
	for _, fn := range s.cfg.AfterSweep {
		fn()
	}
	if n > 0 {
		s.cfg.Logger.Info("session sweep evicted consultations", "count", n)
	}
}

// PruneBriefs removes archived briefs older than the retention period. The
// repository retries busy databases itself.
func (s *Scheduler) PruneBriefs(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	deleted, err := s.cfg.Repo.PruneBriefs(ctx, s.cfg.BriefRetention)
	if err != nil {
		s.cfg.Logger.Error("brief prune failed", "error", err)
		return 0, fmt.Errorf("prune briefs: %w", err)
	}
	if deleted > 0 {
		s.cfg.Logger.Info("pruned archived briefs", "count", deleted)
	}
	return deleted, nil
}
