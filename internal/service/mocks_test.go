package service

import (
	"context"

	"examcraft/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockSourceRepository ---
type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) SaveSource(ctx context.Context, source *domain.Source) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

func (m *MockSourceRepository) GetSourceByID(ctx context.Context, id string) (*domain.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceRepository) ListSources(ctx context.Context, userID string, limit int) ([]*domain.Source, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Source), args.Error(1)
}

func (m *MockSourceRepository) UpdateSourceStatus(ctx context.Context, id string, status domain.SourceStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockSourceRepository) DeleteSource(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSourceRepository) SaveDocument(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockSourceRepository) GetDocumentsBySource(ctx context.Context, sourceID string) ([]*domain.Document, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockSourceRepository) DeleteDocumentsBySource(ctx context.Context, sourceID string) error {
	args := m.Called(ctx, sourceID)
	return args.Error(0)
}

func (m *MockSourceRepository) CountsBySource(ctx context.Context, sourceID string) (int, int, error) {
	args := m.Called(ctx, sourceID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockSourceRepository) DeleteChunksBySource(ctx context.Context, sourceID string) error {
	args := m.Called(ctx, sourceID)
	return args.Error(0)
}

func (m *MockSourceRepository) SaveChunks(ctx context.Context, chunks []*domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockSourceRepository) GetChunksBySource(ctx context.Context, sourceID string, limit int) ([]*domain.Chunk, error) {
	args := m.Called(ctx, sourceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func (m *MockSourceRepository) GetChunksByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func (m *MockSourceRepository) UpsertEmbeddings(ctx context.Context, embeddings []*domain.ChunkEmbedding) error {
	args := m.Called(ctx, embeddings)
	return args.Error(0)
}

// --- MockPaperRepository ---
type MockPaperRepository struct {
	mock.Mock
}

func (m *MockPaperRepository) SavePaper(ctx context.Context, paper *domain.Paper) error {
	args := m.Called(ctx, paper)
	return args.Error(0)
}

func (m *MockPaperRepository) GetPaperByID(ctx context.Context, id string) (*domain.Paper, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *MockPaperRepository) ListPapersBySource(ctx context.Context, sourceID string) ([]*domain.Paper, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Paper), args.Error(1)
}

func (m *MockPaperRepository) UpdatePaperStatus(ctx context.Context, id string, status domain.PaperStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockPaperRepository) DeletePaper(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPaperRepository) DeleteQuestionsByPaper(ctx context.Context, paperID string) error {
	args := m.Called(ctx, paperID)
	return args.Error(0)
}

func (m *MockPaperRepository) SaveQuestion(ctx context.Context, question *domain.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockPaperRepository) SaveCitation(ctx context.Context, citation *domain.QuestionCitation) error {
	args := m.Called(ctx, citation)
	return args.Error(0)
}

func (m *MockPaperRepository) GetQuestionsByPaper(ctx context.Context, paperID string) ([]*domain.Question, error) {
	args := m.Called(ctx, paperID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Question), args.Error(1)
}

func (m *MockPaperRepository) GetCitationsByQuestion(ctx context.Context, questionID string) ([]*domain.QuestionCitation, error) {
	args := m.Called(ctx, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QuestionCitation), args.Error(1)
}

// --- MockAttemptRepository ---
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) SaveAttempt(ctx context.Context, attempt *domain.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetAttemptByID(ctx context.Context, id string) (*domain.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) ListAttempts(ctx context.Context, userID string, limit int) ([]*domain.AttemptSummary, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AttemptSummary), args.Error(1)
}

func (m *MockAttemptRepository) MarkSubmitted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAttemptRepository) MarkGraded(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAttemptRepository) SetAttemptError(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockAttemptRepository) DeleteAttempt(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAttemptRepository) UpsertAnswer(ctx context.Context, answer *domain.Answer) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetAnswersByAttempt(ctx context.Context, attemptID string) ([]*domain.Answer, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Answer), args.Error(1)
}

func (m *MockAttemptRepository) UpsertGrade(ctx context.Context, grade *domain.Grade) error {
	args := m.Called(ctx, grade)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetGradesByAttempt(ctx context.Context, attemptID string) ([]*domain.Grade, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Grade), args.Error(1)
}

func (m *MockAttemptRepository) UpsertWrongItem(ctx context.Context, userID, questionID string, weakTags []string) error {
	args := m.Called(ctx, userID, questionID, weakTags)
	return args.Error(0)
}

func (m *MockAttemptRepository) ListWrongItems(ctx context.Context, userID string, limit int) ([]*domain.WrongItem, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.WrongItem), args.Error(1)
}

// --- MockJobQueue ---
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, name string, payload interface{}) error {
	args := m.Called(ctx, name, payload)
	return args.Error(0)
}

// --- MockEventPublisher ---
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(topic string, event domain.StatusEvent) {
	m.Called(topic, event)
}

// --- MockChatModel ---
type MockChatModel struct {
	mock.Mock
}

func (m *MockChatModel) ChatJSON(ctx context.Context, system, user string, temperature float32) ([]byte, error) {
	args := m.Called(ctx, system, user, temperature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChatModel) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

// fakeTxManager runs the function directly, no transaction involved.
type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
