package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"examcraft/internal/adapter/llm"
	"examcraft/internal/config"
	"examcraft/internal/domain"
	"examcraft/internal/logger"
	"examcraft/internal/util"
)

// chunkCandidate is one chunk offered to the model under a short ref token.
// The model may only cite these refs; anything else is a grounding failure.
type chunkCandidate struct {
	Ref     string
	ChunkID string
	Text    string
}

// pickEvenly samples up to limit items at a constant stride so the selection
// spans the whole document instead of clustering at the start.
func pickEvenly(chunks []*domain.Chunk, limit int) []*domain.Chunk {
	if len(chunks) <= limit {
		return chunks
	}
	step := float64(len(chunks)) / float64(limit)
	picked := make([]*domain.Chunk, 0, limit)
	for i := 0; i < limit; i++ {
		picked = append(picked, chunks[int(float64(i)*step)])
	}
	return picked
}

// GenerationService turns a source's chunks into a full exam paper through
// the chat model. Backs the generate_paper job.
type GenerationService struct {
	paperRepo  domain.PaperRepository
	sourceRepo domain.SourceRepository
	txManager  domain.TransactionManager
	chat       domain.ChatModel
	publisher  domain.EventPublisher
	cfg        *config.Config
}

func NewGenerationService(
	paperRepo domain.PaperRepository,
	sourceRepo domain.SourceRepository,
	txManager domain.TransactionManager,
	chat domain.ChatModel,
	publisher domain.EventPublisher,
	cfg *config.Config,
) *GenerationService {
	return &GenerationService{
		paperRepo:  paperRepo,
		sourceRepo: sourceRepo,
		txManager:  txManager,
		chat:       chat,
		publisher:  publisher,
		cfg:        cfg,
	}
}

func (s *GenerationService) failPaper(ctx context.Context, paperID, msg string) {
	if err := s.paperRepo.UpdatePaperStatus(ctx, paperID, domain.PaperFailed, msg); err != nil {
		logger.Get().Error("failed to mark paper failed",
			zap.String("paper_id", paperID), zap.Error(err))
	}
	s.publisher.Publish(domain.TopicPaper(paperID), domain.StatusEvent{
		Type: "paper", ID: paperID, Status: string(domain.PaperFailed), Error: msg,
	})
}

// GeneratePaper runs the whole generation flow. Missing provider credential
// and an empty chunk set fail the paper without a retryable error; provider
// and persistence failures fail it AND propagate so the queue retries.
// The question set is replaced atomically, so reruns are safe.
func (s *GenerationService) GeneratePaper(ctx context.Context, paperID string) error {
	paper, err := s.paperRepo.GetPaperByID(ctx, paperID)
	if err != nil {
		return err
	}
	if paper == nil {
		return domain.NewPaperNotFoundError(paperID)
	}

	if !s.chat.Available() {
		s.failPaper(ctx, paperID, "OPENAI_API_KEY is not set. Paper generation requires OpenAI.")
		return nil
	}

	chunks, err := s.sourceRepo.GetChunksBySource(ctx, paper.SourceID, 400)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		s.failPaper(ctx, paperID, "No chunks found for this source. Is the source READY?")
		return nil
	}

	candidateCap := s.cfg.Generation.CandidateCap
	if candidateCap <= 0 {
		candidateCap = 24
	}
	textCap := s.cfg.Generation.ChunkTextCap
	if textCap <= 0 {
		textCap = 1200
	}

	sampled := pickEvenly(chunks, candidateCap)
	candidates := make([]chunkCandidate, len(sampled))
	refToChunkID := make(map[string]string, len(sampled))
	for i, c := range sampled {
		ref := "c" + strconv.Itoa(i+1)
		candidates[i] = chunkCandidate{Ref: ref, ChunkID: c.ID, Text: util.Truncate(c.Text, textCap)}
		refToChunkID[ref] = c.ID
	}

	raw, err := s.chat.ChatJSON(ctx, generationSystemPrompt, s.generationUserPrompt(paper, candidates), 0.6)
	if err != nil {
		s.failPaper(ctx, paperID, err.Error())
		return err
	}
	payload, err := llm.ParsePaperPayload(raw)
	if err != nil {
		s.failPaper(ctx, paperID, err.Error())
		return err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paperRepo.DeleteQuestionsByPaper(txCtx, paperID); err != nil {
			return err
		}

		for i := range payload.Questions {
			q := &payload.Questions[i]

			question := &domain.Question{
				ID:         util.NewULID(),
				PaperID:    paperID,
				Type:       q.Type,
				Difficulty: q.Difficulty,
				Prompt:     q.Prompt,
				Tags:       q.Tags,
				CreatedAt:  time.Now(),
			}
			if q.Type == domain.QuestionMCQ {
				question.Options = q.Options
				question.AnswerKey = domain.AnswerKey{
					CorrectOptionID: q.AnswerKey,
					Rationale:       q.Rationale,
				}
			} else {
				question.AnswerKey = domain.AnswerKey{ReferenceAnswer: q.ReferenceAnswer}
				question.Rubric = q.Rubric
			}
			if err := s.paperRepo.SaveQuestion(txCtx, question); err != nil {
				return err
			}

			for _, c := range q.Citations {
				chunkID, ok := refToChunkID[c.ChunkRef]
				if !ok {
					// One hallucinated ref invalidates the whole paper.
					return domain.NewGroundingError(c.ChunkRef)
				}
				citation := &domain.QuestionCitation{
					ID:         util.NewULID(),
					QuestionID: question.ID,
					ChunkID:    chunkID,
					Snippet:    c.Snippet,
					CreatedAt:  time.Now(),
				}
				if err := s.paperRepo.SaveCitation(txCtx, citation); err != nil {
					return err
				}
			}
		}

		return s.paperRepo.UpdatePaperStatus(txCtx, paperID, domain.PaperReady, "")
	})
	if err != nil {
		s.failPaper(ctx, paperID, err.Error())
		return err
	}

	s.publisher.Publish(domain.TopicPaper(paperID), domain.StatusEvent{
		Type: "paper", ID: paperID, Status: string(domain.PaperReady),
	})
	return nil
}

const generationSystemPrompt = "You generate exam papers from provided study material excerpts (chunks).\n" +
	"You MUST output a single JSON object, and nothing else.\n" +
	"Every question MUST include citations referencing ONLY the provided chunk refs.\n" +
	"Do not invent chunk ids/refs; use the exact refs from the list.\n" +
	"Keep the exam answerable solely from the provided chunks."

func (s *GenerationService) generationUserPrompt(paper *domain.Paper, candidates []chunkCandidate) string {
	type promptChunk struct {
		Ref  string `json:"ref"`
		Text string `json:"text"`
	}
	input := struct {
		PaperTitle string             `json:"paperTitle"`
		Config     domain.PaperConfig `json:"config"`
		Chunks     []promptChunk      `json:"chunks"`
	}{
		PaperTitle: paper.Title,
		Config:     paper.Config,
	}
	for _, c := range candidates {
		input.Chunks = append(input.Chunks, promptChunk{Ref: c.Ref, Text: c.Text})
	}
	inputJSON, _ := json.MarshalIndent(input, "", "  ")

	instructions := strings.Join([]string{
		"Generate a paper according to the input JSON.",
		"Output must match the schema fields:",
		"- paperTitle: string",
		"- questions: array of MCQ or SHORT_ANSWER",
		"MCQ rules:",
		"- 4 options A-D",
		"- exactly one correct answerKey (A/B/C/D)",
		"- rationale MUST include 3 parts:",
		"  1) Why the correct option is right (cite source evidence)",
		"  2) Why each wrong option is wrong (briefly, 1 sentence each)",
		"  3) A short takeaway that helps the student remember the key concept",
		"SHORT_ANSWER rules:",
		"- referenceAnswer: short but complete",
		"- rubric: 3-6 points, with ids like p1,p2,... and points sum ~5-10",
		"Citations rules:",
		"- citations[].chunkId must be one of the provided chunk refs (e.g. c1, c2...)",
		"- citations[].snippet (optional) should be <= 2 sentences",
		"Return JSON only.",
	}, "\n")

	return instructions + "\n\nINPUT_JSON:\n" + string(inputJSON) + "\n"
}
