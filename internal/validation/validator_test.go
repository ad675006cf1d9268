package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"examcraft/internal/domain"
	"examcraft/internal/dto"
)

const sampleULID = "01HZXW3V8K9QRST4N2M6P7C5D1"

func TestValidateCreateSource(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		req     dto.CreateSourceRequest
		wantErr bool
	}{
		{"valid paste", dto.CreateSourceRequest{Type: "PASTE", Text: "content"}, false},
		{"valid markdown", dto.CreateSourceRequest{Type: "MARKDOWN_UPLOAD", Md: "# Doc"}, false},
		{"valid github", dto.CreateSourceRequest{Type: "GITHUB", URL: "https://github.com/golang/go"}, false},
		{"paste without text", dto.CreateSourceRequest{Type: "PASTE"}, true},
		{"paste with blank text", dto.CreateSourceRequest{Type: "PASTE", Text: "   "}, true},
		{"github without url", dto.CreateSourceRequest{Type: "GITHUB"}, true},
		{"unknown type", dto.CreateSourceRequest{Type: "FTP", Text: "x"}, true},
		{"oversized text", dto.CreateSourceRequest{Type: "PASTE", Text: strings.Repeat("a", 200_001)}, true},
		{"oversized title", dto.CreateSourceRequest{Type: "PASTE", Title: strings.Repeat("t", 201), Text: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateCreateSource(&tt.req)
			assert.Equal(t, tt.wantErr, len(errs) > 0, "errors: %v", errs)
		})
	}
}

func TestValidateCreatePaper(t *testing.T) {
	v := NewValidator()

	t.Run("valid without config", func(t *testing.T) {
		errs := v.ValidateCreatePaper(&dto.CreatePaperRequest{SourceID: sampleULID})
		assert.Empty(t, errs)
	})

	t.Run("malformed source id", func(t *testing.T) {
		errs := v.ValidateCreatePaper(&dto.CreatePaperRequest{SourceID: "not-a-ulid"})
		assert.NotEmpty(t, errs)
	})

	t.Run("config out of range", func(t *testing.T) {
		cfg := domain.PaperConfig{NumQuestions: 51, Difficulty: 4, Mix: domain.PaperMix{MCQ: 120, ShortAnswer: -1}}
		errs := v.ValidateCreatePaper(&dto.CreatePaperRequest{SourceID: sampleULID, Config: &cfg})
		assert.Len(t, errs, 4)
	})
}

func TestValidateSubmitAttempt(t *testing.T) {
	v := NewValidator()

	t.Run("valid submission", func(t *testing.T) {
		errs := v.ValidateSubmitAttempt(&dto.SubmitAttemptRequest{Answers: []dto.SubmitAnswerRequest{
			{QuestionID: sampleULID, OptionID: "B"},
			{QuestionID: sampleULID, Text: "free text"},
		}})
		assert.Empty(t, errs)
	})

	t.Run("no answers", func(t *testing.T) {
		errs := v.ValidateSubmitAttempt(&dto.SubmitAttemptRequest{})
		assert.NotEmpty(t, errs)
	})

	t.Run("bad option id", func(t *testing.T) {
		errs := v.ValidateSubmitAttempt(&dto.SubmitAttemptRequest{Answers: []dto.SubmitAnswerRequest{
			{QuestionID: sampleULID, OptionID: "E"},
		}})
		assert.NotEmpty(t, errs)
	})

	t.Run("oversized text", func(t *testing.T) {
		errs := v.ValidateSubmitAttempt(&dto.SubmitAttemptRequest{Answers: []dto.SubmitAnswerRequest{
			{QuestionID: sampleULID, Text: strings.Repeat("a", 20_001)},
		}})
		assert.NotEmpty(t, errs)
	})
}
