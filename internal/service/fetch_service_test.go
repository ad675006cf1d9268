package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"examcraft/internal/domain"
	"examcraft/internal/github"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchRepoTree(ctx context.Context, owner, repo, ref string) (string, []github.TreeEntry, error) {
	args := m.Called(ctx, owner, repo, ref)
	entries, _ := args.Get(1).([]github.TreeEntry)
	return args.String(0), entries, args.Error(2)
}

func (m *mockFetcher) FetchFileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	args := m.Called(ctx, owner, repo, ref, path)
	return args.String(0), args.Error(1)
}

func fetchPayload() domain.FetchSourcePayload {
	return domain.FetchSourcePayload{SourceID: "src1", Owner: "golang", Repo: "go"}
}

func TestFetchService_FetchGithubSource(t *testing.T) {
	t.Run("imports files and enqueues chunking", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		fetcher := new(mockFetcher)
		queue := new(MockJobQueue)
		publisher := new(MockEventPublisher)
		svc := NewFetchService(sourceRepo, fakeTxManager{}, fetcher, queue, publisher)

		size := int64(100)
		fetcher.On("FetchRepoTree", mock.Anything, "golang", "go", "").
			Return("main", []github.TreeEntry{
				{Path: "README.md", Type: "blob", Size: &size},
				{Path: "doc.go", Type: "blob", Size: &size},
			}, nil)
		fetcher.On("FetchFileContent", mock.Anything, "golang", "go", "main", "README.md").
			Return("# Go\n\nThe Go programming language.", nil)
		fetcher.On("FetchFileContent", mock.Anything, "golang", "go", "main", "doc.go").
			Return("package main", nil)
		sourceRepo.On("DeleteDocumentsBySource", mock.Anything, "src1").Return(nil).Once()
		var docs []*domain.Document
		sourceRepo.On("SaveDocument", mock.Anything, mock.AnythingOfType("*domain.Document")).
			Run(func(args mock.Arguments) { docs = append(docs, args.Get(1).(*domain.Document)) }).
			Return(nil)
		queue.On("Enqueue", mock.Anything, domain.JobChunkAndEmbed, domain.ChunkAndEmbedPayload{SourceID: "src1"}).
			Return(nil)

		err := svc.FetchGithubSource(context.Background(), fetchPayload())

		require.NoError(t, err)
		require.Len(t, docs, 2)
		// Docs sort before code in the filter, so the README comes first.
		assert.Equal(t, "README.md", docs[0].Meta.Path)
		assert.NotEmpty(t, docs[0].ContentMd)
		assert.Empty(t, docs[1].ContentMd)
		assert.Equal(t, "go", docs[1].Meta.Language)
		queue.AssertExpectations(t)
	})

	t.Run("unreadable file is skipped, not fatal", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		fetcher := new(mockFetcher)
		queue := new(MockJobQueue)
		svc := NewFetchService(sourceRepo, fakeTxManager{}, fetcher, queue, new(MockEventPublisher))

		size := int64(100)
		fetcher.On("FetchRepoTree", mock.Anything, "golang", "go", "").
			Return("main", []github.TreeEntry{
				{Path: "README.md", Type: "blob", Size: &size},
				{Path: "doc.go", Type: "blob", Size: &size},
			}, nil)
		fetcher.On("FetchFileContent", mock.Anything, "golang", "go", "main", "README.md").
			Return("", assertError("503"))
		fetcher.On("FetchFileContent", mock.Anything, "golang", "go", "main", "doc.go").
			Return("package main", nil)
		sourceRepo.On("DeleteDocumentsBySource", mock.Anything, "src1").Return(nil)
		sourceRepo.On("SaveDocument", mock.Anything, mock.Anything).Return(nil).Once()
		queue.On("Enqueue", mock.Anything, domain.JobChunkAndEmbed, mock.Anything).Return(nil)

		err := svc.FetchGithubSource(context.Background(), fetchPayload())

		require.NoError(t, err)
		sourceRepo.AssertExpectations(t)
	})

	t.Run("redelivery replaces documents instead of appending", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		fetcher := new(mockFetcher)
		queue := new(MockJobQueue)
		svc := NewFetchService(sourceRepo, fakeTxManager{}, fetcher, queue, new(MockEventPublisher))

		size := int64(100)
		fetcher.On("FetchRepoTree", mock.Anything, "golang", "go", "").
			Return("main", []github.TreeEntry{{Path: "README.md", Type: "blob", Size: &size}}, nil)
		fetcher.On("FetchFileContent", mock.Anything, "golang", "go", "main", "README.md").
			Return("# Go", nil)

		var calls []string
		sourceRepo.On("DeleteDocumentsBySource", mock.Anything, "src1").
			Run(func(mock.Arguments) { calls = append(calls, "delete") }).
			Return(nil)
		sourceRepo.On("SaveDocument", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { calls = append(calls, "save") }).
			Return(nil)
		queue.On("Enqueue", mock.Anything, domain.JobChunkAndEmbed, mock.Anything).Return(nil)

		require.NoError(t, svc.FetchGithubSource(context.Background(), fetchPayload()))
		require.NoError(t, svc.FetchGithubSource(context.Background(), fetchPayload()))

		// Each run wipes before inserting, so a retried job converges.
		assert.Equal(t, []string{"delete", "save", "delete", "save"}, calls)
	})

	t.Run("empty repository fails the source", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		fetcher := new(mockFetcher)
		publisher := new(MockEventPublisher)
		svc := NewFetchService(sourceRepo, fakeTxManager{}, fetcher, new(MockJobQueue), publisher)

		fetcher.On("FetchRepoTree", mock.Anything, "golang", "go", "").
			Return("main", []github.TreeEntry{}, nil)
		sourceRepo.On("UpdateSourceStatus", mock.Anything, "src1", domain.SourceFailed, mock.Anything).Return(nil)
		var event domain.StatusEvent
		publisher.On("Publish", domain.TopicSource("src1"), mock.Anything).
			Run(func(args mock.Arguments) { event = args.Get(1).(domain.StatusEvent) }).
			Return()

		err := svc.FetchGithubSource(context.Background(), fetchPayload())

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.CodeEmptyContent, domainErr.Code)
		assert.Equal(t, string(domain.SourceFailed), event.Status)
	})
}
