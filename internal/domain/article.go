package domain

import "time"

// Article is immutable once stored; URL is the global dedup key.
type Article struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Content     *string   `db:"content"`
	Summary     *string   `db:"summary"`
	Source      string    `db:"source"`
	URL         string    `db:"url"`
	ImageURL    *string   `db:"image_url"`
	Author      *string   `db:"author"`
	PublishedAt time.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
}

type ArticleAssociation struct {
	StoryID   string    `db:"tracked_story_id"`
	ArticleID string    `db:"article_id"`
	AddedAt   time.Time `db:"added_at"`
}
