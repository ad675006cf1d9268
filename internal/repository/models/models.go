// Package models holds the sqlx row shapes for the sqlite schema. JSON-ish
// columns (config, meta, verdict, rubric) are stored as TEXT and decoded at
// the adapter boundary.
package models

import (
	"database/sql"
	"time"
)

type Source struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Type      string         `db:"type"`
	Title     string         `db:"title"`
	Status    string         `db:"status"`
	Error     sql.NullString `db:"error"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type Document struct {
	ID          string         `db:"id"`
	SourceID    string         `db:"source_id"`
	DocType     string         `db:"doc_type"`
	URI         sql.NullString `db:"uri"`
	ContentHash string         `db:"content_hash"`
	ContentText string         `db:"content_text"`
	ContentMd   sql.NullString `db:"content_md"`
	Meta        string         `db:"meta"`
	CreatedAt   time.Time      `db:"created_at"`
}

type Chunk struct {
	ID         string    `db:"id"`
	DocumentID string    `db:"document_id"`
	ChunkIndex int       `db:"chunk_index"`
	Text       string    `db:"text"`
	Meta       string    `db:"meta"`
	CreatedAt  time.Time `db:"created_at"`
}

type ChunkEmbedding struct {
	ChunkID   string    `db:"chunk_id"`
	Embedding string    `db:"embedding"`
	Model     string    `db:"model"`
	CreatedAt time.Time `db:"created_at"`
}

type Paper struct {
	ID        string         `db:"id"`
	SourceID  string         `db:"source_id"`
	UserID    string         `db:"user_id"`
	Title     string         `db:"title"`
	Config    string         `db:"config"`
	Status    string         `db:"status"`
	Error     sql.NullString `db:"error"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type Question struct {
	ID         string         `db:"id"`
	PaperID    string         `db:"paper_id"`
	Type       string         `db:"type"`
	Difficulty int            `db:"difficulty"`
	Prompt     string         `db:"prompt"`
	Options    sql.NullString `db:"options"`
	AnswerKey  string         `db:"answer_key"`
	Rubric     string         `db:"rubric"`
	Tags       string         `db:"tags"`
	CreatedAt  time.Time      `db:"created_at"`
}

type QuestionCitation struct {
	ID         string         `db:"id"`
	QuestionID string         `db:"question_id"`
	ChunkID    string         `db:"chunk_id"`
	Snippet    sql.NullString `db:"snippet"`
	CreatedAt  time.Time      `db:"created_at"`
}

type Attempt struct {
	ID          string         `db:"id"`
	PaperID     string         `db:"paper_id"`
	UserID      string         `db:"user_id"`
	Status      string         `db:"status"`
	Error       sql.NullString `db:"error"`
	StartedAt   time.Time      `db:"started_at"`
	SubmittedAt sql.NullTime   `db:"submitted_at"`
	GradedAt    sql.NullTime   `db:"graded_at"`
}

type AttemptSummary struct {
	Attempt
	PaperTitle      string          `db:"paper_title"`
	TotalQuestions  int             `db:"total_questions"`
	GradedQuestions int             `db:"graded_questions"`
	Score           sql.NullFloat64 `db:"score"`
	MaxScore        sql.NullFloat64 `db:"max_score"`
}

type Answer struct {
	AttemptID      string         `db:"attempt_id"`
	QuestionID     string         `db:"question_id"`
	AnswerText     sql.NullString `db:"answer_text"`
	AnswerOptionID sql.NullString `db:"answer_option_id"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type Grade struct {
	AttemptID  string          `db:"attempt_id"`
	QuestionID string          `db:"question_id"`
	Score      float64         `db:"score"`
	MaxScore   float64         `db:"max_score"`
	Verdict    string          `db:"verdict"`
	FeedbackMd string          `db:"feedback_md"`
	Citations  string          `db:"citations"`
	Confidence sql.NullFloat64 `db:"confidence"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

type WrongItem struct {
	UserID      string    `db:"user_id"`
	QuestionID  string    `db:"question_id"`
	LastWrongAt time.Time `db:"last_wrong_at"`
	WrongCount  int       `db:"wrong_count"`
	WeakTags    string    `db:"weak_tags"`
}
