package domain

import "time"

// AttemptStatus is the lifecycle state of a learner's pass at a paper.
// Transitions are strictly forward: IN_PROGRESS -> SUBMITTED -> GRADED.
// A grading failure is expressed as a non-null Error on a SUBMITTED attempt
// so grading can be retried without regressing the visible status.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptGraded     AttemptStatus = "GRADED"
)

// Attempt is one learner's submission-and-grading cycle against a paper.
type Attempt struct {
	ID          string
	PaperID     string
	UserID      string
	Status      AttemptStatus
	Error       string
	StartedAt   time.Time
	SubmittedAt *time.Time
	GradedAt    *time.Time
}

// CanSubmit reports whether the attempt accepts a submission.
func (a *Attempt) CanSubmit() bool {
	return a.Status == AttemptInProgress
}

// Answer is one learner response per (attempt, question), upserted on
// resubmission while the attempt is still IN_PROGRESS.
type Answer struct {
	AttemptID      string
	QuestionID     string
	AnswerText     string
	AnswerOptionID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GradeHitPoint notes a rubric point the learner satisfied.
type GradeHitPoint struct {
	RubricPointID string `json:"rubricPointId"`
	Comment       string `json:"comment,omitempty"`
}

// GradeVerdict is the structured explanation behind a grade.
type GradeVerdict struct {
	// MCQ fields
	Correct  *bool  `json:"correct,omitempty"`
	Expected string `json:"expected,omitempty"`
	Got      string `json:"got,omitempty"`

	// Short-answer fields
	HitPoints                 []GradeHitPoint `json:"hitPoints,omitempty"`
	MissingPoints             []string        `json:"missingPoints,omitempty"`
	Misconceptions            []string        `json:"misconceptions,omitempty"`
	ActionableSuggestions     []string        `json:"actionableSuggestions,omitempty"`
	SuggestedAnswer           string          `json:"suggestedAnswer,omitempty"`
	RecommendedReviewChunkIDs []string        `json:"recommendedReviewChunkIds,omitempty"`

	// Set when grading could not run (e.g. provider credential missing).
	Error string `json:"error,omitempty"`
}

// Grade is one grading result per (attempt, question); upserted on regrade,
// never duplicated. Invariant: 0 <= Score <= MaxScore.
type Grade struct {
	AttemptID  string
	QuestionID string
	Score      float64
	MaxScore   float64
	Verdict    GradeVerdict
	FeedbackMd string
	Citations  []string // chunk ids backing the question
	Confidence *float64 // in [0,1], nil when the grader gave none
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsWrong reports whether the grade should feed the wrong-item aggregate.
func (g *Grade) IsWrong() bool {
	return g.Score < g.MaxScore
}

// WrongItem is the per-(user, question) aggregate of incorrect or partial
// answers: a write-through spaced-repetition signal. Upserted, never deleted
// by grading.
type WrongItem struct {
	UserID      string
	QuestionID  string
	LastWrongAt time.Time
	WrongCount  int
	WeakTags    []string
}
