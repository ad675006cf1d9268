package llm

import (
	"encoding/json"
	"fmt"

	"examcraft/internal/domain"
)

// CitationPayload references an offered chunk by its prompt ref (c1, c2...),
// not by database id. The caller resolves refs back to chunk ids.
type CitationPayload struct {
	ChunkRef string `json:"chunkId"`
	Snippet  string `json:"snippet,omitempty"`
}

// QuestionPayload is one validated generated question.
type QuestionPayload struct {
	Type            domain.QuestionType  `json:"type"`
	Difficulty      int                  `json:"difficulty"`
	Prompt          string               `json:"prompt"`
	Options         []domain.MCQOption   `json:"options,omitempty"`
	AnswerKey       string               `json:"answerKey,omitempty"`
	Rationale       string               `json:"rationale,omitempty"`
	ReferenceAnswer string               `json:"referenceAnswer,omitempty"`
	Rubric          []domain.RubricPoint `json:"rubric,omitempty"`
	Tags            []string             `json:"tags"`
	Citations       []CitationPayload    `json:"citations"`
}

// PaperPayload is the validated shape of a paper-generation response.
type PaperPayload struct {
	PaperTitle string            `json:"paperTitle"`
	Questions  []QuestionPayload `json:"questions"`
}

// objectAdapter rewrites one known structural deviation in place. Adapters
// run in order over the raw decoded object before strict validation, so
// later adapters see the output of earlier ones.
type objectAdapter func(obj map[string]interface{})

// promptFromQuestion accepts `question` as an alternate for `prompt`.
func promptFromQuestion(obj map[string]interface{}) {
	if _, ok := obj["prompt"].(string); ok {
		return
	}
	if q, ok := obj["question"].(string); ok {
		obj["prompt"] = q
	}
}

// optionsMapToArray accepts MCQ options given as {"A": "...", ...} instead
// of an array of {id, text}.
func optionsMapToArray(obj map[string]interface{}) {
	raw, ok := obj["options"].(map[string]interface{})
	if !ok {
		return
	}
	keys := []string{"A", "B", "C", "D"}
	options := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		text, ok := raw[k].(string)
		if !ok {
			return
		}
		options = append(options, map[string]interface{}{"id": k, "text": text})
	}
	obj["options"] = options
}

// rubricCriteriaAliases accepts `description`, `criterion` or `text` as
// alternates for each rubric point's `criteria`.
func rubricCriteriaAliases(obj map[string]interface{}) {
	points, ok := obj["rubric"].([]interface{})
	if !ok {
		return
	}
	for _, p := range points {
		point, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		if _, ok := point["criteria"].(string); ok {
			continue
		}
		for _, alias := range []string{"description", "criterion", "text"} {
			if alt, ok := point[alias].(string); ok {
				point["criteria"] = alt
				break
			}
		}
	}
}

var questionAdapters = []objectAdapter{
	promptFromQuestion,
	optionsMapToArray,
	rubricCriteriaAliases,
}

// ParsePaperPayload normalizes and strictly validates a model's
// paper-generation output. Validation failures carry the offending question
// index so generation errors are actionable.
func ParsePaperPayload(raw []byte) (*PaperPayload, error) {
	var root map[string]interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, domain.NewError(domain.CodeLLMServiceError, "model output is not a JSON object", err)
	}

	questions, _ := root["questions"].([]interface{})
	for _, q := range questions {
		if obj, ok := q.(map[string]interface{}); ok {
			for _, adapt := range questionAdapters {
				adapt(obj)
			}
		}
	}

	normalized, err := json.Marshal(root)
	if err != nil {
		return nil, domain.NewInternalError("failed to re-encode normalized payload", err)
	}
	var payload PaperPayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return nil, domain.NewError(domain.CodeLLMServiceError, "model output does not match the paper schema", err)
	}

	if err := validatePaperPayload(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func validatePaperPayload(p *PaperPayload) error {
	if p.PaperTitle == "" {
		return invalidPaper("paperTitle is empty")
	}
	if len(p.Questions) == 0 {
		return invalidPaper("no questions generated")
	}
	if len(p.Questions) > 50 {
		return invalidPaper(fmt.Sprintf("too many questions: %d", len(p.Questions)))
	}

	for i := range p.Questions {
		q := &p.Questions[i]
		if q.Difficulty == 0 {
			q.Difficulty = 2
		}
		if q.Difficulty < 1 || q.Difficulty > 3 {
			return invalidQuestion(i, fmt.Sprintf("difficulty %d out of range", q.Difficulty))
		}
		if q.Prompt == "" {
			return invalidQuestion(i, "prompt is empty")
		}
		if len(q.Tags) == 0 {
			q.Tags = []string{"general"}
		}
		if len(q.Citations) == 0 {
			return invalidQuestion(i, "no citations")
		}
		if len(q.Citations) > 8 {
			return invalidQuestion(i, fmt.Sprintf("too many citations: %d", len(q.Citations)))
		}
		for _, c := range q.Citations {
			if c.ChunkRef == "" {
				return invalidQuestion(i, "citation with empty chunk ref")
			}
		}

		switch q.Type {
		case domain.QuestionMCQ:
			if len(q.Options) != 4 {
				return invalidQuestion(i, fmt.Sprintf("MCQ has %d options, want 4", len(q.Options)))
			}
			for j, opt := range q.Options {
				want := string(rune('A' + j))
				if opt.ID != want {
					return invalidQuestion(i, fmt.Sprintf("option %d has id %q, want %q", j, opt.ID, want))
				}
				if opt.Text == "" {
					return invalidQuestion(i, fmt.Sprintf("option %s has empty text", opt.ID))
				}
			}
			if q.AnswerKey < "A" || q.AnswerKey > "D" || len(q.AnswerKey) != 1 {
				return invalidQuestion(i, fmt.Sprintf("answerKey %q is not one of A-D", q.AnswerKey))
			}
			if q.Rationale == "" {
				return invalidQuestion(i, "MCQ without rationale")
			}
		case domain.QuestionShortAnswer:
			if q.ReferenceAnswer == "" {
				return invalidQuestion(i, "short answer without referenceAnswer")
			}
			if len(q.Rubric) == 0 || len(q.Rubric) > 10 {
				return invalidQuestion(i, fmt.Sprintf("rubric has %d points, want 1..10", len(q.Rubric)))
			}
			for _, point := range q.Rubric {
				if point.ID == "" {
					return invalidQuestion(i, "rubric point without id")
				}
				if point.Criteria == "" {
					return invalidQuestion(i, fmt.Sprintf("rubric point %s without criteria", point.ID))
				}
				if point.Points < 0 || point.Points > 10 {
					return invalidQuestion(i, fmt.Sprintf("rubric point %s has %v points, want 0..10", point.ID, point.Points))
				}
			}
		default:
			return invalidQuestion(i, fmt.Sprintf("unknown question type %q", q.Type))
		}
	}
	return nil
}

func invalidPaper(msg string) error {
	return domain.NewError(domain.CodeLLMServiceError, "invalid generated paper: "+msg, nil)
}

func invalidQuestion(index int, msg string) error {
	return domain.NewError(domain.CodeLLMServiceError,
		fmt.Sprintf("invalid generated question %d: %s", index, msg), nil)
}
