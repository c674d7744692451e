package domain

import "time"

// PollState marks whether a story is currently being polled.
// It is stored on the story row so mutual exclusion holds across
// multiple worker processes.
type PollState string

const (
	PollStateIdle   PollState = "idle"
	PollStateLeased PollState = "leased"
)

type TrackedStory struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	Keyword         string     `db:"keyword"`
	IsPolling       bool       `db:"is_polling"`
	PollIntervalSec int64      `db:"poll_interval_secs"`
	PollState       PollState  `db:"poll_state"`
	LeaseAcquiredAt *time.Time `db:"lease_acquired_at"`
	LastPolledAt    *time.Time `db:"last_polled_at"`
	LastUpdated     time.Time  `db:"last_updated"`
	FailureCount    int        `db:"failure_count"`
	LastFailedAt    *time.Time `db:"last_failed_at"`
	CreatedAt       time.Time  `db:"created_at"`

	Articles []Article `db:"-"`
}

// PollInterval returns the story's own interval, or def when the story
// has none configured.
func (s *TrackedStory) PollInterval(def time.Duration) time.Duration {
	if s.PollIntervalSec > 0 {
		return time.Duration(s.PollIntervalSec) * time.Second
	}
	return def
}

// DueStory is a story claimed for polling by a scheduler cycle.
// Reclaimed is set when the claim recovered a stale lease rather than
// selecting an idle due story.
type DueStory struct {
	Story     TrackedStory
	Reclaimed bool
}
