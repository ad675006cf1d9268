package domain

import "time"

// SourceType identifies how a source's material was imported.
type SourceType string

const (
	SourcePaste          SourceType = "PASTE"
	SourceMarkdownUpload SourceType = "MARKDOWN_UPLOAD"
	SourceURL            SourceType = "URL"
	SourceGithub         SourceType = "GITHUB"
)

// SourceStatus is the ingestion lifecycle state of a source.
type SourceStatus string

const (
	SourcePending    SourceStatus = "PENDING"
	SourceProcessing SourceStatus = "PROCESSING"
	SourceReady      SourceStatus = "READY"
	SourceFailed     SourceStatus = "FAILED"
)

// Source is a unit of imported study material. It is created by an import
// request and mutated only by the ingestion jobs; read paths never touch it.
type Source struct {
	ID        string
	Type      SourceType
	Title     string
	Status    SourceStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSource creates a source in PROCESSING state, ready to be handed to the
// ingestion pipeline.
func NewSource(sourceType SourceType, title string) *Source {
	now := time.Now()
	return &Source{
		Type:      sourceType,
		Title:     title,
		Status:    SourceProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DocType identifies what kind of document was ingested.
type DocType string

const (
	DocArticle    DocType = "ARTICLE"
	DocGithubFile DocType = "GITHUB_FILE"
)

// DocumentMeta is free-form metadata describing where a document came from.
type DocumentMeta struct {
	SourceType string `json:"sourceType,omitempty"`
	Path       string `json:"path,omitempty"`
	Repo       string `json:"repo,omitempty"`
	Ref        string `json:"ref,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Document is one fetched or pasted file belonging to a source. Immutable
// once inserted, aside from cascading delete with its source.
type Document struct {
	ID          string
	SourceID    string
	DocType     DocType
	URI         string
	ContentHash string // SHA-256 of the raw text
	ContentText string
	ContentMd   string
	Meta        DocumentMeta
	CreatedAt   time.Time
}

// ChunkMeta records a chunk's heading annotation and paragraph range.
type ChunkMeta struct {
	Heading   string `json:"heading,omitempty"`
	ParaStart int    `json:"paraStart"`
	ParaEnd   int    `json:"paraEnd"`
}

// Chunk is a bounded passage of a document's text: the unit of citation and,
// optionally, embedding. ChunkIndex is dense and zero-based per document.
type Chunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Text       string
	Meta       ChunkMeta
	CreatedAt  time.Time
}

// ChunkEmbedding is the optional 1:1 companion to a chunk. Absence is a
// valid state: embeddings are best-effort.
type ChunkEmbedding struct {
	ChunkID   string
	Vector    []float32
	Model     string
	CreatedAt time.Time
}
