package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"story_tracker/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// InsertOrGet stores the article unless one with the same URL already
// exists, in which case the existing row wins; articles are immutable
// once stored. The insert-or-get is atomic so two pipelines discovering
// the same URL concurrently never create duplicate rows.
func (s *ArticleStore) InsertOrGet(ctx context.Context, article *domain.Article) (string, bool, error) {
	e := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO articles (
			title, content, summary, source, url, image_url, author, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO NOTHING
		RETURNING id`

	var id string
	err := e.QueryRowxContext(ctx, query,
		article.Title,
		article.Content,
		article.Summary,
		article.Source,
		article.URL,
		article.ImageURL,
		article.Author,
		article.PublishedAt,
	).Scan(&id)

	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, err
	}

	err = e.QueryRowxContext(ctx,
		`SELECT id FROM articles WHERE url = $1`, article.URL,
	).Scan(&id)
	if err != nil {
		return "", false, err
	}
	return id, false, nil
}

func (s *ArticleStore) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	var article domain.Article
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, `
		SELECT id, title, content, summary, source, url, image_url, author,
		       published_at, created_at
		FROM articles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// GetByStory returns the articles associated with a story, newest
// association first.
func (s *ArticleStore) GetByStory(ctx context.Context, storyID string) ([]domain.Article, error) {
	var articles []domain.Article
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &articles, `
		SELECT a.id, a.title, a.content, a.summary, a.source, a.url,
		       a.image_url, a.author, a.published_at, a.created_at
		FROM articles a
		INNER JOIN tracked_story_articles tsa ON tsa.article_id = a.id
		WHERE tsa.tracked_story_id = $1
		ORDER BY tsa.added_at DESC`, storyID)
	return articles, err
}
