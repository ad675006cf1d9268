package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"examcraft/internal/domain"
	"examcraft/internal/logger"
	"examcraft/internal/service"
)

// Services bundles the pipeline services behind the four job handlers.
type Services struct {
	Ingest     *service.IngestService
	Fetch      *service.FetchService
	Generation *service.GenerationService
	Grading    *service.GradingService
}

// RegisterHandlers binds every pipeline job to its service. Generation and
// fetch mark their own entities FAILED; chunking and grading get that from
// the wrappers here so a retried delivery still reports the latest error.
func RegisterHandlers(
	w *Worker,
	svcs Services,
	sourceRepo domain.SourceRepository,
	attemptRepo domain.AttemptRepository,
	publisher domain.EventPublisher,
) {
	w.Register(domain.JobFetchSource, func(ctx context.Context, data json.RawMessage) error {
		var payload domain.FetchSourcePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("invalid fetch_source payload: %w", err)
		}
		return svcs.Fetch.FetchGithubSource(ctx, payload)
	})

	w.Register(domain.JobChunkAndEmbed, func(ctx context.Context, data json.RawMessage) error {
		var payload domain.ChunkAndEmbedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("invalid chunk_and_embed payload: %w", err)
		}
		err := svcs.Ingest.ChunkAndEmbed(ctx, payload.SourceID)
		if err != nil {
			markSourceFailed(ctx, sourceRepo, publisher, payload.SourceID, err)
		}
		return err
	})

	w.Register(domain.JobGeneratePaper, func(ctx context.Context, data json.RawMessage) error {
		var payload domain.GeneratePaperPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("invalid generate_paper payload: %w", err)
		}
		return svcs.Generation.GeneratePaper(ctx, payload.PaperID)
	})

	w.Register(domain.JobGradeAttempt, func(ctx context.Context, data json.RawMessage) error {
		var payload domain.GradeAttemptPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("invalid grade_attempt payload: %w", err)
		}
		// A retried delivery starts clean; the previous run's error must not
		// linger while this one is in flight.
		if err := attemptRepo.SetAttemptError(ctx, payload.AttemptID, ""); err != nil {
			logger.Get().Warn("failed to clear attempt error before grading",
				zap.String("attempt_id", payload.AttemptID), zap.Error(err))
		}
		err := svcs.Grading.GradeAttempt(ctx, payload.AttemptID)
		if err != nil {
			markAttemptError(ctx, attemptRepo, publisher, payload.AttemptID, err)
		}
		return err
	})
}

// markSourceFailed records the failure on the source itself so the status is
// visible even if every retry fails.
func markSourceFailed(
	ctx context.Context,
	sourceRepo domain.SourceRepository,
	publisher domain.EventPublisher,
	sourceID string,
	cause error,
) {
	msg := cause.Error()
	if err := sourceRepo.UpdateSourceStatus(ctx, sourceID, domain.SourceFailed, msg); err != nil {
		logger.Get().Error("failed to mark source failed",
			zap.String("source_id", sourceID), zap.Error(err))
		return
	}
	publisher.Publish(domain.TopicSource(sourceID), domain.StatusEvent{
		Type: "source", ID: sourceID, Status: string(domain.SourceFailed), Error: msg,
	})
}

// markAttemptError keeps the attempt SUBMITTED but surfaces the grading
// error, so a later retry or regrade can still run.
func markAttemptError(
	ctx context.Context,
	attemptRepo domain.AttemptRepository,
	publisher domain.EventPublisher,
	attemptID string,
	cause error,
) {
	msg := cause.Error()
	if err := attemptRepo.SetAttemptError(ctx, attemptID, msg); err != nil {
		logger.Get().Error("failed to record grading error",
			zap.String("attempt_id", attemptID), zap.Error(err))
		return
	}
	publisher.Publish(domain.TopicAttempt(attemptID), domain.StatusEvent{
		Type: "attempt", ID: attemptID, Status: string(domain.AttemptSubmitted), Error: msg,
	})
}
