package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"story_tracker/internal/domain"
)

func (s *TrackerTestSuite) TestStartTracking_NewStoryRunsInitialPoll() {
	created := domain.TrackedStory{
		ID:        "story-1",
		UserID:    "user-1",
		Keyword:   "election",
		IsPolling: true,
		PollState: domain.PollStateIdle,
	}

	s.stories.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, story *domain.TrackedStory) (*domain.TrackedStory, bool, error) {
			s.Equal("user-1", story.UserID)
			s.Equal("election", story.Keyword)
			s.True(story.IsPolling)
			return &created, true, nil
		},
	)

	// Initial out-of-cycle poll.
	s.stories.EXPECT().Get(gomock.Any(), "story-1").Return(&created, nil)
	s.stories.EXPECT().TryAcquireLease(gomock.Any(), "story-1", gomock.Any()).Return(true, nil)
	s.source.EXPECT().FetchArticles(gomock.Any(), "election", gomock.Any()).Return(nil, nil)
	s.associations.EXPECT().ExistingURLs(gomock.Any(), "story-1").Return(map[string]struct{}{}, nil)
	s.stories.EXPECT().ReleaseLease(gomock.Any(), "story-1", gomock.Any()).Return(nil)

	story, err := s.tracker.StartTracking(context.Background(), "user-1", "  election ", "", true)

	s.NoError(err)
	s.Equal("story-1", story.ID)
}

func (s *TrackerTestSuite) TestStartTracking_ExistingStoryReturned() {
	existing := domain.TrackedStory{
		ID:      "story-1",
		UserID:  "user-1",
		Keyword: "election",
	}

	s.stories.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&existing, false, nil)

	story, err := s.tracker.StartTracking(context.Background(), "user-1", "election", "", false)

	s.NoError(err)
	s.Equal(&existing, story)
}

func (s *TrackerTestSuite) TestStartTracking_EmptyKeyword() {
	_, err := s.tracker.StartTracking(context.Background(), "user-1", "   ", "", false)
	s.Error(err)
}

func (s *TrackerTestSuite) TestStartTracking_LinksSourceArticle() {
	existing := domain.TrackedStory{ID: "story-1", UserID: "user-1", Keyword: "election"}

	s.stories.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&existing, false, nil)
	s.associations.EXPECT().InsertIfAbsent(gomock.Any(), "story-1", "seed-article", gomock.Any()).Return(true, nil)

	_, err := s.tracker.StartTracking(context.Background(), "user-1", "election", "seed-article", false)

	s.NoError(err)
}

func (s *TrackerTestSuite) TestSetPolling_NotFound() {
	s.stories.EXPECT().SetPolling(gomock.Any(), "story-1", "user-1", true).
		Return(nil, domain.ErrNotFound)

	_, err := s.tracker.SetPolling(context.Background(), "user-1", "story-1", true)

	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *TrackerTestSuite) TestSetPolling_DisableSkipsImmediatePoll() {
	story := domain.TrackedStory{ID: "story-1", UserID: "user-1", Keyword: "election"}

	s.stories.EXPECT().SetPolling(gomock.Any(), "story-1", "user-1", false).Return(&story, nil)

	got, err := s.tracker.SetPolling(context.Background(), "user-1", "story-1", false)

	s.NoError(err)
	s.Equal(&story, got)
}

func (s *TrackerTestSuite) TestSetPolling_EnableTriggersPoll() {
	story := domain.TrackedStory{ID: "story-1", UserID: "user-1", Keyword: "election", IsPolling: true}

	s.stories.EXPECT().SetPolling(gomock.Any(), "story-1", "user-1", true).Return(&story, nil)

	// Lease contention on the immediate poll is silently tolerated.
	s.stories.EXPECT().Get(gomock.Any(), "story-1").Return(&story, nil)
	s.stories.EXPECT().TryAcquireLease(gomock.Any(), "story-1", gomock.Any()).Return(false, nil)

	got, err := s.tracker.SetPolling(context.Background(), "user-1", "story-1", true)

	s.NoError(err)
	s.Equal(&story, got)
}

func (s *TrackerTestSuite) TestGetStory_IncludesArticles() {
	story := domain.TrackedStory{ID: "story-1", UserID: "user-1", Keyword: "election"}
	articles := []domain.Article{
		{ID: "art-2", Title: "newer"},
		{ID: "art-1", Title: "older"},
	}

	s.stories.EXPECT().GetForOwner(gomock.Any(), "story-1", "user-1").Return(&story, nil)
	s.articles.EXPECT().GetByStory(gomock.Any(), "story-1").Return(articles, nil)

	got, err := s.tracker.GetStory(context.Background(), "user-1", "story-1")

	s.NoError(err)
	s.Equal(articles, got.Articles)
}

func (s *TrackerTestSuite) TestGetStory_OwnerMismatch() {
	s.stories.EXPECT().GetForOwner(gomock.Any(), "story-1", "other-user").
		Return(nil, domain.ErrNotFound)

	_, err := s.tracker.GetStory(context.Background(), "other-user", "story-1")

	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *TrackerTestSuite) TestListStories() {
	stories := []domain.TrackedStory{
		{ID: "story-1", Keyword: "election"},
		{ID: "story-2", Keyword: "economy"},
	}

	s.stories.EXPECT().ListForOwner(gomock.Any(), "user-1").Return(stories, nil)
	s.articles.EXPECT().GetByStory(gomock.Any(), "story-1").Return([]domain.Article{{ID: "art-1"}}, nil)
	s.articles.EXPECT().GetByStory(gomock.Any(), "story-2").Return(nil, nil)

	got, err := s.tracker.ListStories(context.Background(), "user-1")

	s.NoError(err)
	s.Len(got, 2)
	s.Len(got[0].Articles, 1)
	s.Empty(got[1].Articles)
}

func (s *TrackerTestSuite) TestDeleteStory() {
	s.stories.EXPECT().Delete(gomock.Any(), "story-1", "user-1").Return(nil)

	s.NoError(s.tracker.DeleteStory(context.Background(), "user-1", "story-1"))
}

func (s *TrackerTestSuite) TestDeleteStory_NotFound() {
	s.stories.EXPECT().Delete(gomock.Any(), "story-1", "user-1").Return(domain.ErrNotFound)

	err := s.tracker.DeleteStory(context.Background(), "user-1", "story-1")

	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *TrackerTestSuite) TestStartTracking_CreateError() {
	s.stories.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, false, errors.New("storage error"))

	_, err := s.tracker.StartTracking(context.Background(), "user-1", "election", "", false)

	s.Error(err)
}
