package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"examcraft/internal/domain"
)

// GradePayload is the validated shape of a short-answer grading response.
type GradePayload struct {
	Score                     float64                `json:"score"`
	MaxScore                  float64                `json:"maxScore"`
	HitPoints                 []domain.GradeHitPoint `json:"hitPoints"`
	MissingPoints             []string               `json:"missingPoints"`
	Misconceptions            []string               `json:"misconceptions"`
	ActionableSuggestions     []string               `json:"actionableSuggestions"`
	SuggestedAnswer           string                 `json:"suggestedAnswer,omitempty"`
	FeedbackMd                string                 `json:"feedbackMd"`
	RecommendedReviewChunkIDs []string               `json:"recommendedReviewChunkIds"`
	Confidence                *float64               `json:"confidence,omitempty"`
}

// gradeKeyAliases maps the common alternate keys onto the expected ones.
func gradeKeyAliases(obj map[string]interface{}) {
	if _, ok := obj["maxScore"].(float64); !ok {
		if v, ok := obj["max_score"].(float64); ok {
			obj["maxScore"] = v
		}
	}
	if _, ok := obj["actionableSuggestions"].([]interface{}); !ok {
		if v, ok := obj["suggestions"].([]interface{}); ok {
			obj["actionableSuggestions"] = v
		}
	}
	if _, ok := obj["suggestedAnswer"].(string); !ok {
		if v, ok := obj["modelAnswer"].(string); ok {
			obj["suggestedAnswer"] = v
		}
	}
	if _, ok := obj["feedbackMd"].(string); !ok {
		if v, ok := obj["feedback"].(string); ok {
			obj["feedbackMd"] = v
		}
	}
}

// rubricBreakdownToFeedback synthesizes hitPoints, missingPoints and a
// feedback document from the compact rubricBreakdown form some models emit:
// [{id, pointsAwarded, pointsPossible, evidence}, ...].
func rubricBreakdownToFeedback(obj map[string]interface{}) {
	if _, ok := obj["feedbackMd"].(string); ok {
		return
	}
	breakdown, ok := obj["rubricBreakdown"].([]interface{})
	if !ok {
		return
	}

	var hitPoints []interface{}
	var missingPoints []interface{}
	var lines []string

	score, hasScore := obj["score"].(float64)
	maxScore, hasMax := obj["maxScore"].(float64)
	if hasScore && hasMax {
		lines = append(lines, fmt.Sprintf("Score: %v/%v", score, maxScore), "")
	}
	lines = append(lines, "Rubric breakdown:")

	for _, raw := range breakdown {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := item["id"].(string)
		awarded, _ := item["pointsAwarded"].(float64)
		possible, _ := item["pointsPossible"].(float64)
		evidence, _ := item["evidence"].(string)
		evidence = strings.TrimSpace(evidence)

		if id != "" {
			if awarded > 0 {
				hit := map[string]interface{}{"rubricPointId": id}
				if evidence != "" {
					hit["comment"] = evidence
				}
				hitPoints = append(hitPoints, hit)
			}
			if possible > awarded {
				missingPoints = append(missingPoints,
					fmt.Sprintf("%s: missing %v point(s)", id, possible-awarded))
			}
		}

		label := ""
		if id != "" {
			label = id + ": "
		}
		line := fmt.Sprintf("- %s%v/%v", label, awarded, possible)
		if evidence != "" {
			line += " - " + evidence
		}
		lines = append(lines, line)
	}

	if _, ok := obj["hitPoints"].([]interface{}); !ok {
		obj["hitPoints"] = hitPoints
	}
	if _, ok := obj["missingPoints"].([]interface{}); !ok {
		obj["missingPoints"] = missingPoints
	}
	if _, ok := obj["misconceptions"].([]interface{}); !ok {
		obj["misconceptions"] = []interface{}{}
	}
	if _, ok := obj["actionableSuggestions"].([]interface{}); !ok {
		obj["actionableSuggestions"] = []interface{}{}
	}

	feedback := strings.TrimSpace(strings.Join(lines, "\n"))
	if feedback == "" {
		feedback = "No feedback."
	}
	obj["feedbackMd"] = feedback
}

var gradeAdapters = []objectAdapter{
	gradeKeyAliases,
	rubricBreakdownToFeedback,
}

// ParseGradePayload normalizes and strictly validates a model's grading
// output for one short-answer question.
func ParseGradePayload(raw []byte) (*GradePayload, error) {
	var root map[string]interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, domain.NewError(domain.CodeLLMServiceError, "model output is not a JSON object", err)
	}

	for _, adapt := range gradeAdapters {
		adapt(root)
	}

	normalized, err := json.Marshal(root)
	if err != nil {
		return nil, domain.NewInternalError("failed to re-encode normalized payload", err)
	}
	var payload GradePayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return nil, domain.NewError(domain.CodeLLMServiceError, "model output does not match the grade schema", err)
	}

	if payload.Score < 0 {
		return nil, invalidGrade("score is negative")
	}
	if payload.MaxScore < 0 {
		return nil, invalidGrade("maxScore is negative")
	}
	if payload.FeedbackMd == "" {
		return nil, invalidGrade("feedbackMd is empty")
	}
	if payload.Confidence != nil && (*payload.Confidence < 0 || *payload.Confidence > 1) {
		return nil, invalidGrade(fmt.Sprintf("confidence %v out of [0,1]", *payload.Confidence))
	}

	if payload.HitPoints == nil {
		payload.HitPoints = []domain.GradeHitPoint{}
	}
	if payload.MissingPoints == nil {
		payload.MissingPoints = []string{}
	}
	if payload.Misconceptions == nil {
		payload.Misconceptions = []string{}
	}
	if payload.ActionableSuggestions == nil {
		payload.ActionableSuggestions = []string{}
	}
	if payload.RecommendedReviewChunkIDs == nil {
		payload.RecommendedReviewChunkIDs = []string{}
	}
	return &payload, nil
}

func invalidGrade(msg string) error {
	return domain.NewError(domain.CodeLLMServiceError, "invalid grading result: "+msg, nil)
}
