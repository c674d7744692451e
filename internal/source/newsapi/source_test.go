package newsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story_tracker/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSource(baseURL string) *Source {
	return New(Config{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		PageSize:       10,
		Language:       "en",
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, testLogger())
}

func okResponse(articles ...APIArticle) APIResponse {
	return APIResponse{
		Status:       "ok",
		TotalResults: len(articles),
		Articles:     articles,
	}
}

func TestFetchArticles_TransformsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "election", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "publishedAt", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		_ = json.NewEncoder(w).Encode(okResponse(
			APIArticle{
				Source:      APISource{Name: "Example News"},
				Author:      "Jo Writer",
				Title:       "Election Update",
				Description: "Latest developments",
				URL:         "https://example.com/election-update",
				URLToImage:  "https://example.com/img.jpg",
				PublishedAt: "2026-08-30T10:00:00Z",
				Content:     "Full text",
			},
			APIArticle{
				Title:       "Second Item",
				URL:         "https://example.com/second",
				PublishedAt: "2026-08-30T09:00:00Z",
			},
		))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	articles, err := src.FetchArticles(context.Background(), "election", nil)

	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "Election Update", first.Title)
	assert.Equal(t, "Example News", first.Source)
	assert.Equal(t, "https://example.com/election-update", first.URL)
	require.NotNil(t, first.Content)
	assert.Equal(t, "Full text", *first.Content)
	require.NotNil(t, first.Summary)
	assert.Equal(t, "Latest developments", *first.Summary)
	require.NotNil(t, first.Author)
	assert.Equal(t, "Jo Writer", *first.Author)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), first.PublishedAt)

	// Source order is preserved.
	assert.Equal(t, "Second Item", articles[1].Title)
}

func TestFetchArticles_SincePassedAsFromDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-08-29", r.URL.Query().Get("from"))
		_ = json.NewEncoder(w).Encode(okResponse())
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	since := time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC)

	_, err := src.FetchArticles(context.Background(), "election", &since)
	assert.NoError(t, err)
}

func TestFetchArticles_SkipsCandidatesWithoutURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(okResponse(
			APIArticle{Title: "No URL", PublishedAt: "2026-08-30T10:00:00Z"},
			APIArticle{Title: "Has URL", URL: "https://example.com/a", PublishedAt: "2026-08-30T10:00:00Z"},
		))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	articles, err := src.FetchArticles(context.Background(), "election", nil)

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Has URL", articles[0].Title)
}

func TestFetchArticles_RateLimitedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	_, err := src.FetchArticles(context.Background(), "election", nil)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchArticles_ServerErrorRetriedThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	_, err := src.FetchArticles(context.Background(), "election", nil)

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchArticles_RecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(okResponse(
			APIArticle{Title: "ok", URL: "https://example.com/a", PublishedAt: "2026-08-30T10:00:00Z"},
		))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	articles, err := src.FetchArticles(context.Background(), "election", nil)

	require.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchArticles_APILevelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{
			Status:  "error",
			Code:    "apiKeyInvalid",
			Message: "Your API key is invalid",
		})
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	_, err := src.FetchArticles(context.Background(), "election", nil)

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}
