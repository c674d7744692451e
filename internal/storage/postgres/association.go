package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type AssociationStore struct {
	db *sqlx.DB
}

func NewAssociationStore(db *sqlx.DB) *AssociationStore {
	return &AssociationStore{db: db}
}

// InsertIfAbsent links an article to a story. The composite primary key
// makes re-observing the same article a no-op; the return value reports
// whether the association was newly created.
func (s *AssociationStore) InsertIfAbsent(ctx context.Context, storyID, articleID string, at time.Time) (bool, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tracked_story_articles (tracked_story_id, article_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tracked_story_id, article_id) DO NOTHING`,
		storyID, articleID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExistingURLs returns the URLs already associated with the story, as a
// set keyed by the stored (canonical) form.
func (s *AssociationStore) ExistingURLs(ctx context.Context, storyID string) (map[string]struct{}, error) {
	var urls []string
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &urls, `
		SELECT a.url
		FROM articles a
		INNER JOIN tracked_story_articles tsa ON tsa.article_id = a.id
		WHERE tsa.tracked_story_id = $1`, storyID)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}
