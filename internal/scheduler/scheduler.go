package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"story_tracker/internal/config"
	"story_tracker/internal/domain"
)

// StoryClaimer atomically selects and leases the stories due for
// polling.
type StoryClaimer interface {
	ClaimDue(ctx context.Context, now time.Time, defaultInterval, maxHold time.Duration) ([]domain.DueStory, error)
}

// Poller runs one poll cycle for a story whose lease is already held.
type Poller interface {
	PollStory(ctx context.Context, story domain.TrackedStory) (*domain.PollStats, error)
}

// Scheduler drives poll cycles on a fixed cadence. Each tick claims the
// due stories and hands them to a bounded worker pool; the tick itself
// never waits for pipelines to finish. A story still leased from an
// earlier tick simply is not claimed again.
type Scheduler struct {
	claimer StoryClaimer
	poller  Poller
	pool    *Pool
	config  config.PollingConfig
	logger  *slog.Logger
}

func NewScheduler(claimer StoryClaimer, poller Poller, cfg config.PollingConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		claimer: claimer,
		poller:  poller,
		pool:    NewPool(cfg.MaxConcurrentPolls),
		config:  cfg,
		logger:  logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"tick_interval", s.config.TickInterval,
		"max_concurrent_polls", s.config.MaxConcurrentPolls,
	)

	s.pool.Start(ctx)
	defer s.pool.Close()

	s.runCycle(ctx)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	now := time.Now().UTC()

	claimed, err := s.claimer.ClaimDue(ctx, now, s.config.DefaultPollInterval, s.config.LeaseMaxHold)
	if err != nil {
		s.logger.Error("failed to claim due stories", "error", err)
		return
	}

	if len(claimed) == 0 {
		s.logger.Debug("no stories due")
		return
	}

	s.logger.Info("claimed due stories", "count", len(claimed))

	for _, due := range claimed {
		story := due.Story

		if due.Reclaimed {
			s.logger.Warn("recovered stale poll lease",
				"story_id", story.ID,
				"keyword", story.Keyword,
			)
		}

		err := s.pool.Submit(ctx, func(jobCtx context.Context) {
			if _, err := s.poller.PollStory(jobCtx, story); err != nil {
				// Background-cycle failures stay here: one story's
				// failure never aborts other stories or the tick.
				s.logger.Error("poll failed",
					"story_id", story.ID,
					"keyword", story.Keyword,
					"error", err,
				)
			}
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("failed to submit poll job", "story_id", story.ID, "error", err)
			return
		}
	}
}
