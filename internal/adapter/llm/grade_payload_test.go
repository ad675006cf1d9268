package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGradePayload_Valid(t *testing.T) {
	raw := `{
		"score": 4,
		"maxScore": 5,
		"hitPoints": [{"rubricPointId": "p1", "comment": "mentioned the scheduler"}],
		"missingPoints": ["p2: no mention of preemption"],
		"misconceptions": [],
		"actionableSuggestions": ["re-read the scheduling section"],
		"feedbackMd": "Good answer overall.",
		"recommendedReviewChunkIds": ["c3"],
		"confidence": 0.8
	}`

	payload, err := ParseGradePayload([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 4.0, payload.Score)
	assert.Equal(t, 5.0, payload.MaxScore)
	require.Len(t, payload.HitPoints, 1)
	assert.Equal(t, "p1", payload.HitPoints[0].RubricPointID)
	require.NotNil(t, payload.Confidence)
	assert.Equal(t, 0.8, *payload.Confidence)
}

func TestParseGradePayload_KeyAliases(t *testing.T) {
	raw := `{
		"score": 2,
		"max_score": 5,
		"suggestions": ["try again"],
		"modelAnswer": "A goroutine is a lightweight thread.",
		"feedback": "Partial credit."
	}`

	payload, err := ParseGradePayload([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 5.0, payload.MaxScore)
	assert.Equal(t, []string{"try again"}, payload.ActionableSuggestions)
	assert.Equal(t, "A goroutine is a lightweight thread.", payload.SuggestedAnswer)
	assert.Equal(t, "Partial credit.", payload.FeedbackMd)
}

func TestParseGradePayload_RubricBreakdownSynthesis(t *testing.T) {
	raw := `{
		"score": 3,
		"maxScore": 5,
		"rubricBreakdown": [
			{"id": "p1", "pointsAwarded": 3, "pointsPossible": 3, "evidence": "names channels"},
			{"id": "p2", "pointsAwarded": 0, "pointsPossible": 2}
		]
	}`

	payload, err := ParseGradePayload([]byte(raw))
	require.NoError(t, err)

	require.Len(t, payload.HitPoints, 1)
	assert.Equal(t, "p1", payload.HitPoints[0].RubricPointID)
	assert.Equal(t, "names channels", payload.HitPoints[0].Comment)

	require.Len(t, payload.MissingPoints, 1)
	assert.Equal(t, "p2: missing 2 point(s)", payload.MissingPoints[0])

	assert.Contains(t, payload.FeedbackMd, "Score: 3/5")
	assert.Contains(t, payload.FeedbackMd, "Rubric breakdown:")
	assert.Contains(t, payload.FeedbackMd, "p1: 3/3")
	assert.Contains(t, payload.FeedbackMd, "p2: 0/2")
	assert.Empty(t, payload.Misconceptions)
	assert.Empty(t, payload.ActionableSuggestions)
}

func TestParseGradePayload_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not an object", `[1,2]`},
		{"negative score", `{"score": -1, "maxScore": 5, "feedbackMd": "f"}`},
		{"missing feedback", `{"score": 1, "maxScore": 5}`},
		{"confidence above one", `{"score": 1, "maxScore": 5, "feedbackMd": "f", "confidence": 1.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGradePayload([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseGradePayload_DefaultsEmptySlices(t *testing.T) {
	payload, err := ParseGradePayload([]byte(`{"score": 5, "maxScore": 5, "feedbackMd": "perfect"}`))
	require.NoError(t, err)
	assert.NotNil(t, payload.HitPoints)
	assert.NotNil(t, payload.MissingPoints)
	assert.NotNil(t, payload.Misconceptions)
	assert.NotNil(t, payload.ActionableSuggestions)
	assert.NotNil(t, payload.RecommendedReviewChunkIDs)
}
