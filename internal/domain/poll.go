package domain

import "time"

// PollStats holds statistics about one poll cycle for one story.
type PollStats struct {
	StoryID   string
	Fetched   int
	Matched   int
	New       int
	Skipped   int
	Errors    int
	Published int
	Duration  time.Duration
}
