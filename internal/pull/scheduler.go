package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// Scheduler enqueues one work item per pull target of the configuration
// each time its cron expression fires
type Scheduler struct {
	expr   string
	pmodes ResolverSource
	queue  Queue
	notify bool
	now    func() time.Time
	logger *slog.Logger
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	// Cron is a five or six field cron expression
	Cron string
	// NotifyBackendOnError is copied into every work item
	NotifyBackendOnError bool
	Logger               *slog.Logger
}

// NewScheduler validates the cron expression and creates a scheduler.
func NewScheduler(cfg SchedulerConfig, pmodes ResolverSource, queue Queue) (*Scheduler, error) {
	if !gronx.New().IsValid(cfg.Cron) {
		return nil, fmt.Errorf("invalid pull cron expression %q", cfg.Cron)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		expr:   cfg.Cron,
		pmodes: pmodes,
		queue:  queue,
		notify: cfg.NotifyBackendOnError,
		now:    time.Now,
		logger: cfg.Logger,
	}, nil
}

// Run triggers on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("pull scheduler started", "cron", s.expr)
	for {
		now := s.now()
		next, err := gronx.NextTickAfter(s.expr, now, false)
		if err != nil {
			return fmt.Errorf("computing next pull tick: %w", err)
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("pull scheduler stopped")
			return nil
		case <-timer.C:
		}

		if _, err := s.Trigger(ctx); err != nil {
			s.logger.Error("pull trigger failed", "error", err)
		}
	}
}

// Trigger enqueues a work item for every current pull target and returns
// how many were enqueued. Without a configuration there is nothing to pull.
func (s *Scheduler) Trigger(ctx context.Context) (int, error) {
	resolver, err := s.pmodes.Resolver(ctx)
	if errors.Is(err, pmode.ErrConfigurationMissing) {
		s.logger.Debug("no pmode configuration, skipping pull")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, target := range resolver.PullTargets() {
		item := WorkItem{
			Mpc:                  target.Mpc,
			PModeKey:             target.Key.String(),
			NotifyBackendOnError: s.notify,
		}
		if err := s.queue.Enqueue(ctx, item); err != nil {
			return n, fmt.Errorf("enqueueing pull for %s: %w", item.PModeKey, err)
		}
		n++
	}
	s.logger.Debug("pull requests enqueued", "count", n)
	return n, nil
}
