package domain

import "context"

// Job names, one handler each. Payloads carry the owning entity id plus
// whatever extra context the handler needs.
const (
	JobFetchSource   = "fetch_source"
	JobChunkAndEmbed = "chunk_and_embed"
	JobGeneratePaper = "generate_paper"
	JobGradeAttempt  = "grade_attempt"
)

// ChunkAndEmbedPayload drives the chunk/embed job.
type ChunkAndEmbedPayload struct {
	SourceID string `json:"sourceId"`
}

// FetchSourcePayload drives the remote-repository fetch job.
type FetchSourcePayload struct {
	SourceID string `json:"sourceId"`
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Ref      string `json:"ref,omitempty"`
	Subpath  string `json:"subpath,omitempty"`
}

// GeneratePaperPayload drives the paper generation job.
type GeneratePaperPayload struct {
	PaperID string `json:"paperId"`
}

// GradeAttemptPayload drives the attempt grading job.
type GradeAttemptPayload struct {
	AttemptID string `json:"attemptId"`
}

// JobQueue enqueues typed jobs onto the durable queue. Delivery is
// at-least-once; handlers must be re-entrant-safe.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload interface{}) error
}
