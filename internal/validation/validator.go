// Package validation checks request bodies before they reach the services.
package validation

import (
	"regexp"
	"strings"

	"examcraft/internal/domain"
	"examcraft/internal/dto"
)

const (
	maxTitleLen   = 200
	maxContentLen = 200_000
	maxAnswerLen  = 20_000
	maxAnswers    = 200
)

// Validator provides request validation for the API handlers.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCreateSource validates the discriminated create-source request.
func (v *Validator) ValidateCreateSource(req *dto.CreateSourceRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors

	errs = append(errs, validateTitle(req.Title)...)

	switch domain.SourceType(req.Type) {
	case domain.SourcePaste:
		errs = append(errs, validateContent("text", req.Text)...)
	case domain.SourceMarkdownUpload:
		errs = append(errs, validateContent("md", req.Md)...)
	case domain.SourceURL, domain.SourceGithub:
		if strings.TrimSpace(req.URL) == "" {
			errs = append(errs, domain.NewMissingFieldError("url"))
		}
	default:
		errs = append(errs, domain.NewInvalidFormatError("type", req.Type))
	}
	return errs
}

// ValidateCreatePaper validates the create-paper request. Config is optional;
// when present every field must be in range.
func (v *Validator) ValidateCreatePaper(req *dto.CreatePaperRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors

	if strings.TrimSpace(req.SourceID) == "" {
		errs = append(errs, domain.NewMissingFieldError("sourceId"))
	} else if !isValidULID(req.SourceID) {
		errs = append(errs, domain.NewInvalidFormatError("sourceId", req.SourceID))
	}
	errs = append(errs, validateTitle(req.Title)...)

	if cfg := req.Config; cfg != nil {
		if cfg.NumQuestions < 1 || cfg.NumQuestions > 50 {
			errs = append(errs, domain.NewOutOfRangeError("config.numQuestions", cfg.NumQuestions, 1, 50))
		}
		if cfg.Difficulty < 1 || cfg.Difficulty > 3 {
			errs = append(errs, domain.NewOutOfRangeError("config.difficulty", cfg.Difficulty, 1, 3))
		}
		if cfg.Mix.MCQ < 0 || cfg.Mix.MCQ > 100 {
			errs = append(errs, domain.NewOutOfRangeError("config.mix.mcq", cfg.Mix.MCQ, 0, 100))
		}
		if cfg.Mix.ShortAnswer < 0 || cfg.Mix.ShortAnswer > 100 {
			errs = append(errs, domain.NewOutOfRangeError("config.mix.shortAnswer", cfg.Mix.ShortAnswer, 0, 100))
		}
	}
	return errs
}

// ValidateCreateAttempt validates the create-attempt request.
func (v *Validator) ValidateCreateAttempt(req *dto.CreateAttemptRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors
	if strings.TrimSpace(req.PaperID) == "" {
		errs = append(errs, domain.NewMissingFieldError("paperId"))
	} else if !isValidULID(req.PaperID) {
		errs = append(errs, domain.NewInvalidFormatError("paperId", req.PaperID))
	}
	return errs
}

// ValidateSubmitAttempt validates a submission: 1..200 answers, each bound
// to a question, option ids restricted to A-D.
func (v *Validator) ValidateSubmitAttempt(req *dto.SubmitAttemptRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors

	if len(req.Answers) == 0 || len(req.Answers) > maxAnswers {
		errs = append(errs, domain.NewOutOfRangeError("answers", len(req.Answers), 1, maxAnswers))
		return errs
	}
	for _, a := range req.Answers {
		if strings.TrimSpace(a.QuestionID) == "" {
			errs = append(errs, domain.NewMissingFieldError("answers[].questionId"))
			continue
		}
		if a.OptionID != "" && !isValidOptionID(a.OptionID) {
			errs = append(errs, domain.NewInvalidFormatError("answers[].optionId", a.OptionID))
		}
		if len(a.Text) > maxAnswerLen {
			errs = append(errs, domain.NewOutOfRangeError("answers[].text", len(a.Text), 0, maxAnswerLen))
		}
	}
	return errs
}

func validateTitle(title string) domain.ValidationErrors {
	if len(title) > maxTitleLen {
		return domain.ValidationErrors{
			domain.NewOutOfRangeError("title", len(title), 0, maxTitleLen),
		}
	}
	return nil
}

func validateContent(field, content string) domain.ValidationErrors {
	var errs domain.ValidationErrors
	if strings.TrimSpace(content) == "" {
		errs = append(errs, domain.NewMissingFieldError(field))
	} else if len(content) > maxContentLen {
		errs = append(errs, domain.NewOutOfRangeError(field, len(content), 1, maxContentLen))
	}
	return errs
}

var validULID = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

func isValidULID(s string) bool {
	return len(s) == 26 && validULID.MatchString(s)
}

func isValidOptionID(s string) bool {
	return s == "A" || s == "B" || s == "C" || s == "D"
}
