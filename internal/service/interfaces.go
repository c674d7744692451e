package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"story_tracker/internal/domain"
)

type StoryStore interface {
	Create(ctx context.Context, story *domain.TrackedStory) (*domain.TrackedStory, bool, error)
	Get(ctx context.Context, id string) (*domain.TrackedStory, error)
	GetForOwner(ctx context.Context, id, userID string) (*domain.TrackedStory, error)
	ListForOwner(ctx context.Context, userID string) ([]domain.TrackedStory, error)
	Delete(ctx context.Context, id, userID string) error
	SetPolling(ctx context.Context, id, userID string, enabled bool) (*domain.TrackedStory, error)
	TryAcquireLease(ctx context.Context, id string, now time.Time) (bool, error)
	ReleaseLease(ctx context.Context, id string, lastPolledAt time.Time) error
	RecordFailure(ctx context.Context, id string, at time.Time) error
	ClearFailures(ctx context.Context, id string) error
	MarkUpdated(ctx context.Context, id string, at time.Time) error
}

type ArticleStore interface {
	InsertOrGet(ctx context.Context, article *domain.Article) (string, bool, error)
	GetByStory(ctx context.Context, storyID string) ([]domain.Article, error)
}

type AssociationStore interface {
	InsertIfAbsent(ctx context.Context, storyID, articleID string, at time.Time) (bool, error)
	ExistingURLs(ctx context.Context, storyID string) (map[string]struct{}, error)
}

type Source interface {
	ID() string
	Name() string
	FetchArticles(ctx context.Context, keyword string, since *time.Time) ([]domain.Article, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, storyID string, article *domain.Article) error
	Close() error
}
