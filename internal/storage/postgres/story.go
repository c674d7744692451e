package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"story_tracker/internal/domain"
)

type StoryStore struct {
	db *sqlx.DB
}

func NewStoryStore(db *sqlx.DB) *StoryStore {
	return &StoryStore{db: db}
}

const storyColumns = `id, user_id, keyword, is_polling, poll_interval_secs,
	poll_state, lease_acquired_at, last_polled_at, last_updated,
	failure_count, last_failed_at, created_at`

// Create inserts a tracked story for the owner, or returns the existing
// one when the owner already tracks the keyword. The second return value
// reports whether a new row was created.
func (s *StoryStore) Create(ctx context.Context, story *domain.TrackedStory) (*domain.TrackedStory, bool, error) {
	e := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO tracked_stories (
			user_id, keyword, is_polling, poll_interval_secs, last_polled_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, keyword_key) DO NOTHING
		RETURNING ` + storyColumns

	var lastPolledAt *time.Time
	if story.IsPolling {
		now := time.Now().UTC()
		lastPolledAt = &now
	}

	var created domain.TrackedStory
	err := sqlx.GetContext(ctx, e, &created, query,
		story.UserID,
		story.Keyword,
		story.IsPolling,
		story.PollIntervalSec,
		lastPolledAt,
	)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	var existing domain.TrackedStory
	err = sqlx.GetContext(ctx, e, &existing,
		`SELECT `+storyColumns+` FROM tracked_stories
		 WHERE user_id = $1 AND keyword_key = lower(btrim($2))`,
		story.UserID, story.Keyword,
	)
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (s *StoryStore) Get(ctx context.Context, id string) (*domain.TrackedStory, error) {
	var story domain.TrackedStory
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &story,
		`SELECT `+storyColumns+` FROM tracked_stories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// GetForOwner returns domain.ErrNotFound both when the story is absent
// and when it belongs to a different user.
func (s *StoryStore) GetForOwner(ctx context.Context, id, userID string) (*domain.TrackedStory, error) {
	var story domain.TrackedStory
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &story,
		`SELECT `+storyColumns+` FROM tracked_stories WHERE id = $1 AND user_id = $2`,
		id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (s *StoryStore) ListForOwner(ctx context.Context, userID string) ([]domain.TrackedStory, error) {
	var stories []domain.TrackedStory
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &stories,
		`SELECT `+storyColumns+` FROM tracked_stories
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return stories, err
}

// Delete removes the story; associations go with it via cascade.
func (s *StoryStore) Delete(ctx context.Context, id, userID string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM tracked_stories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *StoryStore) SetPolling(ctx context.Context, id, userID string, enabled bool) (*domain.TrackedStory, error) {
	var story domain.TrackedStory
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &story, `
		UPDATE tracked_stories
		SET is_polling = $3,
		    last_polled_at = CASE WHEN $3 THEN now() ELSE last_polled_at END
		WHERE id = $1 AND user_id = $2
		RETURNING `+storyColumns,
		id, userID, enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// TryAcquireLease atomically flips the story from idle to leased.
// A false return means the lease is already held; that is expected
// contention, not an error.
func (s *StoryStore) TryAcquireLease(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		UPDATE tracked_stories
		SET poll_state = 'leased', lease_acquired_at = $2
		WHERE id = $1 AND poll_state = 'idle'`,
		id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type claimedRow struct {
	domain.TrackedStory
	Reclaimed bool `db:"reclaimed"`
}

// ClaimDue selects and leases every due story in one atomic statement,
// so two overlapping ticks (or two worker processes) never claim the
// same story. A story is due when polling is enabled, its lease is idle
// and its interval has elapsed since last_polled_at. Leases held longer
// than maxHold are forcibly reclaimed and flagged on the returned row.
func (s *StoryStore) ClaimDue(ctx context.Context, now time.Time, defaultInterval, maxHold time.Duration) ([]domain.DueStory, error) {
	query := `
		WITH due AS (
			SELECT id, poll_state AS prev_state
			FROM tracked_stories
			WHERE is_polling = true
			  AND (
			      (poll_state = 'idle' AND (
			          last_polled_at IS NULL
			          OR last_polled_at <= $1::timestamptz - make_interval(secs =>
			              CASE WHEN poll_interval_secs > 0 THEN poll_interval_secs::float8 ELSE $2 END)
			      ))
			      OR (poll_state = 'leased'
			          AND lease_acquired_at <= $1::timestamptz - make_interval(secs => $3))
			  )
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tracked_stories t
		SET poll_state = 'leased', lease_acquired_at = $1
		FROM due
		WHERE t.id = due.id
		RETURNING t.id, t.user_id, t.keyword, t.is_polling, t.poll_interval_secs,
		          t.poll_state, t.lease_acquired_at, t.last_polled_at, t.last_updated,
		          t.failure_count, t.last_failed_at, t.created_at,
		          due.prev_state = 'leased' AS reclaimed`

	var rows []claimedRow
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query,
		now, defaultInterval.Seconds(), maxHold.Seconds())
	if err != nil {
		return nil, err
	}

	claimed := make([]domain.DueStory, 0, len(rows))
	for _, r := range rows {
		claimed = append(claimed, domain.DueStory{Story: r.TrackedStory, Reclaimed: r.Reclaimed})
	}
	return claimed, nil
}

// ReleaseLease returns the story to idle and advances last_polled_at.
// GREATEST keeps the timestamp monotonic even if a stale pipeline
// releases after a reclaimed one already did.
func (s *StoryStore) ReleaseLease(ctx context.Context, id string, lastPolledAt time.Time) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		UPDATE tracked_stories
		SET poll_state = 'idle',
		    lease_acquired_at = NULL,
		    last_polled_at = GREATEST(COALESCE(last_polled_at, $2), $2)
		WHERE id = $1`,
		id, lastPolledAt)
	return err
}

func (s *StoryStore) RecordFailure(ctx context.Context, id string, at time.Time) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		UPDATE tracked_stories
		SET failure_count = failure_count + 1, last_failed_at = $2
		WHERE id = $1`,
		id, at)
	return err
}

func (s *StoryStore) ClearFailures(ctx context.Context, id string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE tracked_stories SET failure_count = 0 WHERE id = $1`, id)
	return err
}

// MarkUpdated advances last_updated, which moves only when a cycle
// actually associated new articles.
func (s *StoryStore) MarkUpdated(ctx context.Context, id string, at time.Time) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE tracked_stories SET last_updated = $2 WHERE id = $1`, id, at)
	return err
}
