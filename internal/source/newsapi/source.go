package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"story_tracker/internal/domain"
)

const (
	SourceID   = "newsapi"
	SourceName = "NewsAPI"
)

// Config holds NewsAPI source configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	PageSize       int
	Language       string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches candidate articles for a keyword from NewsAPI.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	pageSize       int
	language       string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new NewsAPI source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		pageSize:       cfg.PageSize,
		language:       cfg.Language,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchArticles searches NewsAPI for articles matching keyword, newest
// first. A non-nil since narrows results to articles published on or
// after that day. Results keep the source's order.
func (s *Source) FetchArticles(ctx context.Context, keyword string, since *time.Time) ([]domain.Article, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("pageSize", strconv.Itoa(s.pageSize))
	params.Set("language", s.language)
	params.Set("sortBy", "publishedAt")
	if since != nil {
		params.Set("from", since.UTC().Format("2006-01-02"))
	}

	reqURL := s.baseURL + "?" + params.Encode()

	var resp *APIResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx, reqURL)
		if err == nil {
			return s.transform(resp.Articles), nil
		}

		// Rate limits are surfaced immediately so the caller can skip
		// the story this cycle instead of hammering the provider.
		if errors.Is(err, domain.ErrRateLimited) {
			return nil, err
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"keyword", keyword,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, reqURL string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("User-Agent", "StoryTracker/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("%w: api error %s: %s", domain.ErrSourceUnavailable, apiResp.Code, apiResp.Message)
	}

	return &apiResp, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(items []APIArticle) []domain.Article {
	articles := make([]domain.Article, 0, len(items))

	for _, item := range items {
		if item.URL == "" {
			s.logger.Warn("candidate missing url, skipping", "title", item.Title)
			continue
		}

		publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			publishedAt = time.Now().UTC()
		}

		article := domain.Article{
			Title:       item.Title,
			Source:      item.Source.Name,
			URL:         item.URL,
			PublishedAt: publishedAt,
		}

		if item.Content != "" {
			article.Content = &item.Content
		} else if item.Description != "" {
			article.Content = &item.Description
		}
		if item.Description != "" {
			article.Summary = &item.Description
		}
		if item.URLToImage != "" {
			article.ImageURL = &item.URLToImage
		}
		if item.Author != "" {
			article.Author = &item.Author
		}

		articles = append(articles, article)
	}

	return articles
}
