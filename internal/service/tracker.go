package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"story_tracker/internal/config"
	"story_tracker/internal/domain"
)

// Tracker implements the story tracking engine: the operations exposed
// to the API layer plus the per-story poll pipeline driven by the
// scheduler.
type Tracker struct {
	source       Source
	stories      StoryStore
	articles     ArticleStore
	associations AssociationStore
	txManager    TransactionManager
	publisher    Publisher
	logger       *slog.Logger
	config       config.PollingConfig
}

func NewTracker(
	source Source,
	stories StoryStore,
	articles ArticleStore,
	associations AssociationStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.PollingConfig,
) *Tracker {
	return &Tracker{
		source:       source,
		stories:      stories,
		articles:     articles,
		associations: associations,
		txManager:    txManager,
		publisher:    publisher,
		logger:       logger.With("source", source.ID()),
		config:       cfg,
	}
}

// StartTracking creates a tracked story for the owner. Creation is
// idempotent per (owner, keyword): tracking an already tracked keyword
// returns the existing story. An optional source article is associated
// immediately, and an out-of-cycle poll seeds the story with current
// matches.
func (t *Tracker) StartTracking(ctx context.Context, userID, keyword, sourceArticleID string, enablePolling bool) (*domain.TrackedStory, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("keyword must not be empty")
	}

	story, created, err := t.stories.Create(ctx, &domain.TrackedStory{
		UserID:    userID,
		Keyword:   keyword,
		IsPolling: enablePolling,
	})
	if err != nil {
		return nil, err
	}

	if sourceArticleID != "" {
		if _, err := t.associations.InsertIfAbsent(ctx, story.ID, sourceArticleID, time.Now().UTC()); err != nil {
			t.logger.Error("failed to link source article",
				"story_id", story.ID,
				"article_id", sourceArticleID,
				"error", err,
			)
		}
	}

	if created {
		t.logger.Info("tracked story created",
			"story_id", story.ID,
			"keyword", story.Keyword,
			"polling", story.IsPolling,
		)
		if _, err := t.TriggerImmediatePoll(ctx, story.ID); err != nil && !errors.Is(err, domain.ErrConflict) {
			t.logger.Warn("initial poll failed", "story_id", story.ID, "error", err)
		}
	}

	return story, nil
}

// SetPolling enables or disables automatic polling. Enabling also runs
// an immediate poll so the story reflects current news without waiting
// for the next scheduled cycle.
func (t *Tracker) SetPolling(ctx context.Context, userID, storyID string, enabled bool) (*domain.TrackedStory, error) {
	story, err := t.stories.SetPolling(ctx, storyID, userID, enabled)
	if err != nil {
		return nil, err
	}

	if enabled {
		if _, err := t.TriggerImmediatePoll(ctx, story.ID); err != nil && !errors.Is(err, domain.ErrConflict) {
			t.logger.Warn("poll on enable failed", "story_id", story.ID, "error", err)
		}
	}

	return story, nil
}

// GetStory returns the story with its associated articles, newest
// association first.
func (t *Tracker) GetStory(ctx context.Context, userID, storyID string) (*domain.TrackedStory, error) {
	story, err := t.stories.GetForOwner(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}

	articles, err := t.articles.GetByStory(ctx, story.ID)
	if err != nil {
		return nil, err
	}
	story.Articles = articles

	return story, nil
}

func (t *Tracker) ListStories(ctx context.Context, userID string) ([]domain.TrackedStory, error) {
	stories, err := t.stories.ListForOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range stories {
		articles, err := t.articles.GetByStory(ctx, stories[i].ID)
		if err != nil {
			return nil, err
		}
		stories[i].Articles = articles
	}

	return stories, nil
}

func (t *Tracker) DeleteStory(ctx context.Context, userID, storyID string) error {
	return t.stories.Delete(ctx, storyID, userID)
}

// TriggerImmediatePoll runs one poll cycle for the story outside the
// schedule, under the same lease mutual exclusion as scheduled polls.
// Returns domain.ErrConflict when the lease is already held; unlike
// scheduled cycles, pipeline failures are surfaced to the caller.
func (t *Tracker) TriggerImmediatePoll(ctx context.Context, storyID string) (*domain.PollStats, error) {
	story, err := t.stories.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}

	acquired, err := t.stories.TryAcquireLease(ctx, story.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domain.ErrConflict
	}

	return t.PollStory(ctx, *story)
}
