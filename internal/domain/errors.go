package domain

import "errors"

var (
	// ErrNotFound is returned when a story does not exist or is owned by
	// a different user.
	ErrNotFound = errors.New("story not found")

	// ErrConflict is returned when a poll lease is already held.
	ErrConflict = errors.New("poll lease already held")

	// ErrSourceUnavailable marks transient article-source failures;
	// the story is retried on the next cycle.
	ErrSourceUnavailable = errors.New("article source unavailable")

	// ErrRateLimited marks a source rate limit; the story is skipped
	// this cycle without retrying.
	ErrRateLimited = errors.New("article source rate limited")
)
