package domain

import "time"

// PaperStatus is the generation lifecycle state of a paper.
type PaperStatus string

const (
	PaperDraft      PaperStatus = "DRAFT"
	PaperProcessing PaperStatus = "PROCESSING"
	PaperReady      PaperStatus = "READY"
	PaperFailed     PaperStatus = "FAILED"
)

// PaperMix is the MCQ / short-answer percentage split.
type PaperMix struct {
	MCQ         int `json:"mcq"`
	ShortAnswer int `json:"shortAnswer"`
}

// PaperConfig controls how a paper is generated.
type PaperConfig struct {
	Language     string   `json:"language"`
	NumQuestions int      `json:"numQuestions"`
	Difficulty   int      `json:"difficulty"`
	Mix          PaperMix `json:"mix"`
}

// DefaultPaperConfig mirrors the defaults applied when a create request
// omits the config entirely.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		Language:     "en",
		NumQuestions: 10,
		Difficulty:   2,
		Mix:          PaperMix{MCQ: 60, ShortAnswer: 40},
	}
}

// Paper is a generated exam tied to exactly one source.
type Paper struct {
	ID        string
	SourceID  string
	Title     string
	Config    PaperConfig
	Status    PaperStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuestionType discriminates exam item kinds.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "MCQ"
	QuestionShortAnswer QuestionType = "SHORT_ANSWER"
)

// MCQOption is one of the four A-D choices of an MCQ question.
type MCQOption struct {
	ID   string `json:"id"` // "A".."D"
	Text string `json:"text"`
}

// AnswerKey holds the authoritative answer for a question. MCQ questions
// carry CorrectOptionID + Rationale; short answers carry ReferenceAnswer.
type AnswerKey struct {
	CorrectOptionID string `json:"correctOptionId,omitempty"`
	Rationale       string `json:"rationale,omitempty"`
	ReferenceAnswer string `json:"referenceAnswer,omitempty"`
}

// RubricPoint is one scored criterion of a short-answer rubric.
type RubricPoint struct {
	ID       string  `json:"id"`
	Points   float64 `json:"points"`
	Criteria string  `json:"criteria"`
}

// Question is one exam item.
type Question struct {
	ID         string
	PaperID    string
	Type       QuestionType
	Difficulty int // 1..3
	Prompt     string
	Options    []MCQOption   // MCQ only: exactly 4
	AnswerKey  AnswerKey
	Rubric     []RubricPoint // SHORT_ANSWER only
	Tags       []string
	CreatedAt  time.Time
}

// MaxScore returns the maximum obtainable score for the question: 1 for MCQ,
// the rubric point sum for short answers.
func (q *Question) MaxScore() float64 {
	if q.Type == QuestionMCQ {
		return 1
	}
	return SumRubric(q.Rubric)
}

// SumRubric totals rubric points.
func SumRubric(rubric []RubricPoint) float64 {
	var total float64
	for _, p := range rubric {
		total += p.Points
	}
	return total
}

// QuestionCitation links a question to a chunk that grounds it. Every
// question carries at least one, and every citation must resolve to a chunk
// of the paper's source.
type QuestionCitation struct {
	ID         string
	QuestionID string
	ChunkID    string
	Snippet    string
	CreatedAt  time.Time
}
