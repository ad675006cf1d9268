// Package dto defines the request and response bodies of the HTTP API.
package dto

import (
	"time"

	"examcraft/internal/domain"
)

// CreateSourceRequest is discriminated by Type: PASTE and MARKDOWN_UPLOAD
// carry Text/Md, URL and GITHUB carry URL.
type CreateSourceRequest struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	Md    string `json:"md,omitempty"`
	URL   string `json:"url,omitempty"`
}

type SourceResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SourceCountsResponse struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

type SourceDetailResponse struct {
	SourceResponse
	Counts SourceCountsResponse `json:"counts"`
}

type DocumentPreviewResponse struct {
	ID      string              `json:"id"`
	DocType string              `json:"docType"`
	URI     string              `json:"uri,omitempty"`
	Meta    domain.DocumentMeta `json:"meta"`
	Preview string              `json:"preview"`
	Bytes   int                 `json:"bytes"`
}

type CreatePaperRequest struct {
	SourceID string              `json:"sourceId"`
	Title    string              `json:"title,omitempty"`
	Config   *domain.PaperConfig `json:"config,omitempty"`
}

type PaperResponse struct {
	ID        string             `json:"id"`
	SourceID  string             `json:"sourceId"`
	Title     string             `json:"title"`
	Config    domain.PaperConfig `json:"config"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type MCQOptionResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionResponse never carries the answer key or rubric; those only
// surface through the result view after grading.
type QuestionResponse struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Difficulty int                 `json:"difficulty"`
	Prompt     string              `json:"prompt"`
	Options    []MCQOptionResponse `json:"options,omitempty"`
	Tags       []string            `json:"tags"`
}

type CreateAttemptRequest struct {
	PaperID string `json:"paperId"`
}

type AttemptResponse struct {
	ID          string     `json:"id"`
	PaperID     string     `json:"paperId"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`
}

type AttemptPaperResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type AnswerResponse struct {
	QuestionID string `json:"questionId"`
	Text       string `json:"text,omitempty"`
	OptionID   string `json:"optionId,omitempty"`
}

type AttemptDetailResponse struct {
	AttemptResponse
	Paper     AttemptPaperResponse `json:"paper"`
	Questions []QuestionResponse   `json:"questions"`
	Answers   []AnswerResponse     `json:"answers"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId,omitempty"`
	Text       string `json:"text,omitempty"`
}

type SubmitAttemptRequest struct {
	Answers []SubmitAnswerRequest `json:"answers"`
}

type SubmitAttemptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type GradeResponse struct {
	QuestionID string              `json:"questionId"`
	Score      float64             `json:"score"`
	MaxScore   float64             `json:"maxScore"`
	Verdict    domain.GradeVerdict `json:"verdict"`
	FeedbackMd string              `json:"feedbackMd"`
	Citations  []string            `json:"citations"`
	Confidence *float64            `json:"confidence,omitempty"`
}

// ResultQuestionResponse is the graded view of a question: unlike
// QuestionResponse it includes the answer key and rubric.
type ResultQuestionResponse struct {
	QuestionResponse
	AnswerKey domain.AnswerKey     `json:"answerKey"`
	Rubric    []domain.RubricPoint `json:"rubric,omitempty"`
}

type AttemptTotalsResponse struct {
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
}

type AttemptResultResponse struct {
	AttemptResponse
	Totals    AttemptTotalsResponse    `json:"totals"`
	Questions []ResultQuestionResponse `json:"questions"`
	Answers   []AnswerResponse         `json:"answers"`
	Grades    []GradeResponse          `json:"grades"`
}

type AttemptSummaryResponse struct {
	AttemptResponse
	PaperTitle      string  `json:"paperTitle"`
	TotalQuestions  int     `json:"totalQuestions"`
	GradedQuestions int     `json:"gradedQuestions"`
	Score           float64 `json:"score"`
	MaxScore        float64 `json:"maxScore"`
}

type WrongItemResponse struct {
	QuestionID  string    `json:"questionId"`
	LastWrongAt time.Time `json:"lastWrongAt"`
	WrongCount  int       `json:"wrongCount"`
	WeakTags    []string  `json:"weakTags"`
}

// Mapping helpers keep the handlers free of field-by-field copies.

func ToSourceResponse(s *domain.Source) SourceResponse {
	return SourceResponse{
		ID:        s.ID,
		Type:      string(s.Type),
		Title:     s.Title,
		Status:    string(s.Status),
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func ToPaperResponse(p *domain.Paper) PaperResponse {
	return PaperResponse{
		ID:        p.ID,
		SourceID:  p.SourceID,
		Title:     p.Title,
		Config:    p.Config,
		Status:    string(p.Status),
		Error:     p.Error,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func ToQuestionResponse(q *domain.Question) QuestionResponse {
	resp := QuestionResponse{
		ID:         q.ID,
		Type:       string(q.Type),
		Difficulty: q.Difficulty,
		Prompt:     q.Prompt,
		Tags:       q.Tags,
	}
	for _, opt := range q.Options {
		resp.Options = append(resp.Options, MCQOptionResponse{ID: opt.ID, Text: opt.Text})
	}
	return resp
}

func ToAttemptResponse(a *domain.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:          a.ID,
		PaperID:     a.PaperID,
		Status:      string(a.Status),
		Error:       a.Error,
		StartedAt:   a.StartedAt,
		SubmittedAt: a.SubmittedAt,
		GradedAt:    a.GradedAt,
	}
}

func ToAnswerResponse(a *domain.Answer) AnswerResponse {
	return AnswerResponse{
		QuestionID: a.QuestionID,
		Text:       a.AnswerText,
		OptionID:   a.AnswerOptionID,
	}
}

func ToGradeResponse(g *domain.Grade) GradeResponse {
	return GradeResponse{
		QuestionID: g.QuestionID,
		Score:      g.Score,
		MaxScore:   g.MaxScore,
		Verdict:    g.Verdict,
		FeedbackMd: g.FeedbackMd,
		Citations:  g.Citations,
		Confidence: g.Confidence,
	}
}
