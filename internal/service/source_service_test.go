package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"examcraft/internal/config"
	"examcraft/internal/domain"
	"examcraft/internal/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Env: "test", Level: "error"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestSourceService_CreateTextSource(t *testing.T) {
	t.Run("paste creates source and document then enqueues chunking", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewSourceService(sourceRepo, fakeTxManager{}, queue)

		var savedDoc *domain.Document
		sourceRepo.On("SaveSource", mock.Anything, mock.AnythingOfType("*domain.Source")).Return(nil)
		sourceRepo.On("SaveDocument", mock.Anything, mock.AnythingOfType("*domain.Document")).
			Run(func(args mock.Arguments) { savedDoc = args.Get(1).(*domain.Document) }).
			Return(nil)
		queue.On("Enqueue", mock.Anything, domain.JobChunkAndEmbed, mock.Anything).Return(nil)

		source, err := svc.CreateTextSource(context.Background(), domain.SourcePaste, "My Notes", "Goroutines are cheap.")

		require.NoError(t, err)
		assert.Equal(t, domain.SourceProcessing, source.Status)
		assert.Equal(t, "My Notes", source.Title)
		require.NotNil(t, savedDoc)
		assert.Equal(t, domain.DocArticle, savedDoc.DocType)
		assert.Equal(t, "Goroutines are cheap.", savedDoc.ContentText)
		assert.Empty(t, savedDoc.ContentMd)
		queue.AssertExpectations(t)
	})

	t.Run("markdown upload keeps the markdown view", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewSourceService(sourceRepo, fakeTxManager{}, queue)

		var savedDoc *domain.Document
		sourceRepo.On("SaveSource", mock.Anything, mock.Anything).Return(nil)
		sourceRepo.On("SaveDocument", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { savedDoc = args.Get(1).(*domain.Document) }).
			Return(nil)
		queue.On("Enqueue", mock.Anything, domain.JobChunkAndEmbed, mock.Anything).Return(nil)

		_, err := svc.CreateTextSource(context.Background(), domain.SourceMarkdownUpload, "", "# Title\n\nBody.")

		require.NoError(t, err)
		assert.Equal(t, "# Title\n\nBody.", savedDoc.ContentMd)
	})

	t.Run("empty title gets a typed default", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewSourceService(sourceRepo, fakeTxManager{}, queue)

		sourceRepo.On("SaveSource", mock.Anything, mock.Anything).Return(nil)
		sourceRepo.On("SaveDocument", mock.Anything, mock.Anything).Return(nil)
		queue.On("Enqueue", mock.Anything, domain.JobChunkAndEmbed, mock.Anything).Return(nil)

		source, err := svc.CreateTextSource(context.Background(), domain.SourcePaste, "", "text")

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(source.Title, "PASTE "))
	})

	t.Run("no enqueue when the transaction fails", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewSourceService(sourceRepo, fakeTxManager{}, queue)

		sourceRepo.On("SaveSource", mock.Anything, mock.Anything).Return(errors.New("db down"))

		_, err := svc.CreateTextSource(context.Background(), domain.SourcePaste, "t", "text")

		require.Error(t, err)
		queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSourceService_CreateGithubSource(t *testing.T) {
	t.Run("parses the url and enqueues the fetch", func(t *testing.T) {
		sourceRepo := new(MockSourceRepository)
		queue := new(MockJobQueue)
		svc := NewSourceService(sourceRepo, fakeTxManager{}, queue)

		sourceRepo.On("SaveSource", mock.Anything, mock.Anything).Return(nil)
		var payload domain.FetchSourcePayload
		queue.On("Enqueue", mock.Anything, domain.JobFetchSource, mock.Anything).
			Run(func(args mock.Arguments) { payload = args.Get(2).(domain.FetchSourcePayload) }).
			Return(nil)

		source, err := svc.CreateGithubSource(context.Background(), "", "https://github.com/golang/go/tree/master/src/context")

		require.NoError(t, err)
		assert.Equal(t, "golang/go", source.Title)
		assert.Equal(t, "golang", payload.Owner)
		assert.Equal(t, "go", payload.Repo)
		assert.Equal(t, "master", payload.Ref)
		assert.Equal(t, "src/context", payload.Subpath)
	})

	t.Run("rejects a non-github url", func(t *testing.T) {
		svc := NewSourceService(new(MockSourceRepository), fakeTxManager{}, new(MockJobQueue))

		_, err := svc.CreateGithubSource(context.Background(), "", "https://gitlab.com/foo/bar")

		require.Error(t, err)
	})
}

func TestSourceService_CreateURLSource(t *testing.T) {
	svc := NewSourceService(new(MockSourceRepository), fakeTxManager{}, new(MockJobQueue))

	_, err := svc.CreateURLSource(context.Background(), "", "https://example.com/article")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.CodeNotImplemented, domainErr.Code)
}

func TestSourceService_PreviewSource(t *testing.T) {
	sourceRepo := new(MockSourceRepository)
	svc := NewSourceService(sourceRepo, fakeTxManager{}, new(MockJobQueue))

	long := strings.Repeat("a", 2000)
	sourceRepo.On("GetSourceByID", mock.Anything, "src1").
		Return(&domain.Source{ID: "src1", Status: domain.SourceReady}, nil)
	sourceRepo.On("GetDocumentsBySource", mock.Anything, "src1").
		Return([]*domain.Document{{ID: "doc1", DocType: domain.DocArticle, ContentText: long}}, nil)

	previews, err := svc.PreviewSource(context.Background(), "src1")

	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Len(t, previews[0].Preview, 800)
	assert.Equal(t, 2000, previews[0].Bytes)
}

func TestSourceService_GetSource_NotFound(t *testing.T) {
	sourceRepo := new(MockSourceRepository)
	svc := NewSourceService(sourceRepo, fakeTxManager{}, new(MockJobQueue))

	sourceRepo.On("GetSourceByID", mock.Anything, "missing").Return(nil, nil)

	_, err := svc.GetSource(context.Background(), "missing")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.CodeSourceNotFound, domainErr.Code)
}
