package service

import (
	"context"
	"fmt"
	"time"

	"story_tracker/internal/domain"
	"story_tracker/internal/matcher"
)

// releaseGrace bounds the lease release after a pipeline timeout, so a
// timed-out context never leaves the lease for stale reclamation.
const releaseGrace = 5 * time.Second

// PollStory runs one fetch-match-commit-notify cycle for a story whose
// lease the caller already holds. The lease is always released and
// last_polled_at always advanced, on success and on failure alike;
// failed stories keep polling_enabled and are retried on later cycles.
func (t *Tracker) PollStory(ctx context.Context, story domain.TrackedStory) (*domain.PollStats, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, t.config.PollTimeout)
	defer cancel()

	stats := &domain.PollStats{StoryID: story.ID}

	defer func() {
		// Plain Background here: the pipeline context may already be
		// done, and the lease must be released regardless.
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), releaseGrace)
		defer releaseCancel()

		if err := t.stories.ReleaseLease(releaseCtx, story.ID, time.Now().UTC()); err != nil {
			t.logger.Error("failed to release poll lease", "story_id", story.ID, "error", err)
		}

		stats.Duration = time.Since(startTime)
	}()

	t.logger.Info("polling story",
		"story_id", story.ID,
		"keyword", story.Keyword,
		"last_polled_at", story.LastPolledAt,
	)

	candidates, err := t.source.FetchArticles(ctx, story.Keyword, story.LastPolledAt)
	if err != nil {
		stats.Errors++
		if recErr := t.stories.RecordFailure(context.WithoutCancel(ctx), story.ID, time.Now().UTC()); recErr != nil {
			t.logger.Error("failed to record poll failure", "story_id", story.ID, "error", recErr)
		}
		return stats, fmt.Errorf("fetch articles: %w", err)
	}
	stats.Fetched = len(candidates)

	existing, err := t.associations.ExistingURLs(ctx, story.ID)
	if err != nil {
		stats.Errors++
		return stats, fmt.Errorf("load existing articles: %w", err)
	}

	fresh := matcher.FilterNew(candidates, existing)
	stats.Matched = len(fresh)
	stats.Skipped = stats.Fetched - stats.Matched

	for i := range fresh {
		article := fresh[i]
		article.URL = matcher.Canonicalize(article.URL)

		inserted, err := t.commitArticle(ctx, story.ID, &article)
		if err != nil {
			// Partial success: commit what we can, the rest is retried
			// on the next cycle.
			stats.Errors++
			t.logger.Error("failed to commit article",
				"story_id", story.ID,
				"url", article.URL,
				"error", err,
			)
			continue
		}
		if !inserted {
			stats.Skipped++
			continue
		}

		stats.New++

		if t.publisher != nil {
			if err := t.publisher.Publish(ctx, story.ID, &article); err != nil {
				t.logger.Error("failed to publish story update",
					"story_id", story.ID,
					"article_id", article.ID,
					"error", err,
				)
			} else {
				stats.Published++
			}
		}
	}

	now := time.Now().UTC()
	if stats.New > 0 {
		if err := t.stories.MarkUpdated(ctx, story.ID, now); err != nil {
			t.logger.Error("failed to mark story updated", "story_id", story.ID, "error", err)
		}
	}
	if story.FailureCount > 0 {
		if err := t.stories.ClearFailures(ctx, story.ID); err != nil {
			t.logger.Error("failed to clear failure count", "story_id", story.ID, "error", err)
		}
	}

	t.logger.Info("poll completed",
		"story_id", story.ID,
		"fetched", stats.Fetched,
		"new", stats.New,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"published", stats.Published,
		"duration", time.Since(startTime),
	)

	return stats, nil
}

// commitArticle stores the article (dedup by canonical URL) and links
// it to the story in one transaction. The bool reports whether the
// association is new.
func (t *Tracker) commitArticle(ctx context.Context, storyID string, article *domain.Article) (bool, error) {
	var inserted bool

	err := t.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		articleID, _, err := t.articles.InsertOrGet(txCtx, article)
		if err != nil {
			return fmt.Errorf("upsert article: %w", err)
		}
		article.ID = articleID

		inserted, err = t.associations.InsertIfAbsent(txCtx, storyID, articleID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert association: %w", err)
		}

		return nil
	})

	return inserted, err
}
