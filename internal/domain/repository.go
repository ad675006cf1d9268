package domain

import "context"

// TransactionManager runs a function inside one database transaction.
// Repositories participate by reading the transaction out of the context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SourceRepository persists sources, documents, chunks and embeddings.
type SourceRepository interface {
	SaveSource(ctx context.Context, source *Source) error
	GetSourceByID(ctx context.Context, id string) (*Source, error)
	ListSources(ctx context.Context, userID string, limit int) ([]*Source, error)
	UpdateSourceStatus(ctx context.Context, id string, status SourceStatus, errMsg string) error
	DeleteSource(ctx context.Context, id string) error

	SaveDocument(ctx context.Context, doc *Document) error
	GetDocumentsBySource(ctx context.Context, sourceID string) ([]*Document, error)
	// DeleteDocumentsBySource removes every document of the source, cascading
	// to chunks and embeddings. Paired with SaveDocument inside one
	// transaction so a re-fetched import replaces the old one atomically.
	DeleteDocumentsBySource(ctx context.Context, sourceID string) error
	CountsBySource(ctx context.Context, sourceID string) (documents int, chunks int, err error)

	// DeleteChunksBySource removes every chunk of the source's documents,
	// cascading to their embeddings. Paired with SaveChunks inside one
	// transaction so re-chunking is never partial.
	DeleteChunksBySource(ctx context.Context, sourceID string) error
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunksBySource(ctx context.Context, sourceID string, limit int) ([]*Chunk, error)
	GetChunksByIDs(ctx context.Context, ids []string) ([]*Chunk, error)

	UpsertEmbeddings(ctx context.Context, embeddings []*ChunkEmbedding) error
}

// PaperRepository persists papers, questions and citations.
type PaperRepository interface {
	SavePaper(ctx context.Context, paper *Paper) error
	GetPaperByID(ctx context.Context, id string) (*Paper, error)
	ListPapersBySource(ctx context.Context, sourceID string) ([]*Paper, error)
	UpdatePaperStatus(ctx context.Context, id string, status PaperStatus, errMsg string) error
	DeletePaper(ctx context.Context, id string) error

	// DeleteQuestionsByPaper + SaveQuestion run inside one transaction so a
	// regenerated question set replaces the old one atomically.
	DeleteQuestionsByPaper(ctx context.Context, paperID string) error
	SaveQuestion(ctx context.Context, question *Question) error
	SaveCitation(ctx context.Context, citation *QuestionCitation) error
	GetQuestionsByPaper(ctx context.Context, paperID string) ([]*Question, error)
	GetCitationsByQuestion(ctx context.Context, questionID string) ([]*QuestionCitation, error)
}

// AttemptRepository persists attempts, answers, grades and wrong items.
type AttemptRepository interface {
	SaveAttempt(ctx context.Context, attempt *Attempt) error
	GetAttemptByID(ctx context.Context, id string) (*Attempt, error)
	ListAttempts(ctx context.Context, userID string, limit int) ([]*AttemptSummary, error)
	MarkSubmitted(ctx context.Context, id string) error
	MarkGraded(ctx context.Context, id string) error
	SetAttemptError(ctx context.Context, id string, errMsg string) error
	DeleteAttempt(ctx context.Context, id string) error

	UpsertAnswer(ctx context.Context, answer *Answer) error
	GetAnswersByAttempt(ctx context.Context, attemptID string) ([]*Answer, error)

	UpsertGrade(ctx context.Context, grade *Grade) error
	GetGradesByAttempt(ctx context.Context, attemptID string) ([]*Grade, error)

	UpsertWrongItem(ctx context.Context, userID, questionID string, weakTags []string) error
	ListWrongItems(ctx context.Context, userID string, limit int) ([]*WrongItem, error)
}

// AttemptSummary is the list-view aggregate of an attempt.
type AttemptSummary struct {
	Attempt
	PaperTitle      string
	TotalQuestions  int
	GradedQuestions int
	Score           float64
	MaxScore        float64
}
