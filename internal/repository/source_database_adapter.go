package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"examcraft/internal/domain"
	"examcraft/internal/repository/models"
	"examcraft/internal/util"
)

// SourceDatabaseAdapter implements domain.SourceRepository on sqlx.
type SourceDatabaseAdapter struct {
	db *sqlx.DB
}

func NewSourceDatabaseAdapter(db *sqlx.DB) *SourceDatabaseAdapter {
	return &SourceDatabaseAdapter{db: db}
}

func (a *SourceDatabaseAdapter) SaveSource(ctx context.Context, source *domain.Source) error {
	executor := GetExecutor(ctx, a.db)
	query := `INSERT INTO sources (id, user_id, type, title, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := executor.ExecContext(ctx, query,
		source.ID, domain.DefaultUserID, string(source.Type), source.Title,
		string(source.Status), util.StringToNullString(source.Error),
		source.CreatedAt, source.UpdatedAt)
	if err != nil {
		return domain.NewInternalError("failed to save source", err)
	}
	return nil
}

func (a *SourceDatabaseAdapter) GetSourceByID(ctx context.Context, id string) (*domain.Source, error) {
	executor := GetExecutor(ctx, a.db)
	var row models.Source
	err := executor.GetContext(ctx, &row,
		`SELECT id, user_id, type, title, status, error, created_at, updated_at FROM sources WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewInternalError("failed to get source", err)
	}
	return sourceToDomain(&row), nil
}

func (a *SourceDatabaseAdapter) ListSources(ctx context.Context, userID string, limit int) ([]*domain.Source, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.Source
	err := executor.SelectContext(ctx, &rows,
		`SELECT id, user_id, type, title, status, error, created_at, updated_at
		 FROM sources WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, domain.NewInternalError("failed to list sources", err)
	}
	sources := make([]*domain.Source, 0, len(rows))
	for i := range rows {
		sources = append(sources, sourceToDomain(&rows[i]))
	}
	return sources, nil
}

func (a *SourceDatabaseAdapter) UpdateSourceStatus(ctx context.Context, id string, status domain.SourceStatus, errMsg string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx,
		`UPDATE sources SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), util.StringToNullString(errMsg), time.Now(), id)
	if err != nil {
		return domain.NewInternalError("failed to update source status", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewSourceNotFoundError(id)
	}
	return nil
}

func (a *SourceDatabaseAdapter) DeleteSource(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return domain.NewInternalError("failed to delete source", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewSourceNotFoundError(id)
	}
	return nil
}

func (a *SourceDatabaseAdapter) SaveDocument(ctx context.Context, doc *domain.Document) error {
	executor := GetExecutor(ctx, a.db)
	metaJSON, err := json.Marshal(doc.Meta)
	if err != nil {
		return domain.NewInternalError("failed to encode document meta", err)
	}
	query := `INSERT INTO documents (id, source_id, doc_type, uri, content_hash, content_text, content_md, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = executor.ExecContext(ctx, query,
		doc.ID, doc.SourceID, string(doc.DocType), util.StringToNullString(doc.URI),
		doc.ContentHash, doc.ContentText, util.StringToNullString(doc.ContentMd),
		string(metaJSON), doc.CreatedAt)
	if err != nil {
		return domain.NewInternalError("failed to save document", err)
	}
	return nil
}

func (a *SourceDatabaseAdapter) GetDocumentsBySource(ctx context.Context, sourceID string) ([]*domain.Document, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.Document
	err := executor.SelectContext(ctx, &rows,
		`SELECT id, source_id, doc_type, uri, content_hash, content_text, content_md, meta, created_at
		 FROM documents WHERE source_id = ? ORDER BY created_at ASC, id ASC`, sourceID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list documents", err)
	}
	docs := make([]*domain.Document, 0, len(rows))
	for i := range rows {
		doc, err := documentToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (a *SourceDatabaseAdapter) DeleteDocumentsBySource(ctx context.Context, sourceID string) error {
	executor := GetExecutor(ctx, a.db)
	query := `DELETE FROM documents WHERE source_id = ?`
	if _, err := executor.ExecContext(ctx, query, sourceID); err != nil {
		return domain.NewInternalError("failed to delete documents", err)
	}
	return nil
}

func (a *SourceDatabaseAdapter) CountsBySource(ctx context.Context, sourceID string) (int, int, error) {
	executor := GetExecutor(ctx, a.db)
	var counts struct {
		Documents int `db:"documents"`
		Chunks    int `db:"chunks"`
	}
	query := `SELECT
		(SELECT COUNT(*) FROM documents WHERE source_id = ?) AS documents,
		(SELECT COUNT(*) FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.source_id = ?) AS chunks`
	if err := executor.GetContext(ctx, &counts, query, sourceID, sourceID); err != nil {
		return 0, 0, domain.NewInternalError("failed to count source contents", err)
	}
	return counts.Documents, counts.Chunks, nil
}

func (a *SourceDatabaseAdapter) DeleteChunksBySource(ctx context.Context, sourceID string) error {
	executor := GetExecutor(ctx, a.db)
	query := `DELETE FROM chunks WHERE document_id IN (SELECT id FROM documents WHERE source_id = ?)`
	if _, err := executor.ExecContext(ctx, query, sourceID); err != nil {
		return domain.NewInternalError("failed to delete chunks", err)
	}
	return nil
}

func (a *SourceDatabaseAdapter) SaveChunks(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	executor := GetExecutor(ctx, a.db)
	query := `INSERT INTO chunks (id, document_id, chunk_index, text, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, chunk := range chunks {
		metaJSON, err := json.Marshal(chunk.Meta)
		if err != nil {
			return domain.NewInternalError("failed to encode chunk meta", err)
		}
		_, err = executor.ExecContext(ctx, query,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Text,
			string(metaJSON), chunk.CreatedAt)
		if err != nil {
			return domain.NewInternalError("failed to save chunk", err)
		}
	}
	return nil
}

func (a *SourceDatabaseAdapter) GetChunksBySource(ctx context.Context, sourceID string, limit int) ([]*domain.Chunk, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.Chunk
	query := `SELECT c.id, c.document_id, c.chunk_index, c.text, c.meta, c.created_at
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.source_id = ?
		ORDER BY d.created_at ASC, d.id ASC, c.chunk_index ASC`
	args := []interface{}{sourceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if err := executor.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.NewInternalError("failed to list chunks", err)
	}
	return chunksToDomain(rows)
}

func (a *SourceDatabaseAdapter) GetChunksByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	executor := GetExecutor(ctx, a.db)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`SELECT id, document_id, chunk_index, text, meta, created_at
		FROM chunks WHERE id IN (%s)`, placeholders)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	var rows []models.Chunk
	if err := executor.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.NewInternalError("failed to get chunks by ids", err)
	}
	return chunksToDomain(rows)
}

func (a *SourceDatabaseAdapter) UpsertEmbeddings(ctx context.Context, embeddings []*domain.ChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	executor := GetExecutor(ctx, a.db)
	query := `INSERT INTO chunk_embeddings (chunk_id, embedding, model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (chunk_id) DO UPDATE SET embedding = excluded.embedding, model = excluded.model`
	for _, emb := range embeddings {
		vectorJSON, err := json.Marshal(emb.Vector)
		if err != nil {
			return domain.NewInternalError("failed to encode embedding vector", err)
		}
		_, err = executor.ExecContext(ctx, query, emb.ChunkID, string(vectorJSON), emb.Model, emb.CreatedAt)
		if err != nil {
			return domain.NewInternalError("failed to upsert embedding", err)
		}
	}
	return nil
}

func sourceToDomain(row *models.Source) *domain.Source {
	return &domain.Source{
		ID:        row.ID,
		Type:      domain.SourceType(row.Type),
		Title:     row.Title,
		Status:    domain.SourceStatus(row.Status),
		Error:     row.Error.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func documentToDomain(row *models.Document) (*domain.Document, error) {
	var meta domain.DocumentMeta
	if row.Meta != "" {
		if err := json.Unmarshal([]byte(row.Meta), &meta); err != nil {
			return nil, domain.NewInternalError("failed to decode document meta", err)
		}
	}
	return &domain.Document{
		ID:          row.ID,
		SourceID:    row.SourceID,
		DocType:     domain.DocType(row.DocType),
		URI:         row.URI.String,
		ContentHash: row.ContentHash,
		ContentText: row.ContentText,
		ContentMd:   row.ContentMd.String,
		Meta:        meta,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func chunksToDomain(rows []models.Chunk) ([]*domain.Chunk, error) {
	chunks := make([]*domain.Chunk, 0, len(rows))
	for i := range rows {
		var meta domain.ChunkMeta
		if rows[i].Meta != "" {
			if err := json.Unmarshal([]byte(rows[i].Meta), &meta); err != nil {
				return nil, domain.NewInternalError("failed to decode chunk meta", err)
			}
		}
		chunks = append(chunks, &domain.Chunk{
			ID:         rows[i].ID,
			DocumentID: rows[i].DocumentID,
			ChunkIndex: rows[i].ChunkIndex,
			Text:       rows[i].Text,
			Meta:       meta,
			CreatedAt:  rows[i].CreatedAt,
		})
	}
	return chunks, nil
}
