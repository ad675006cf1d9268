package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"examcraft/internal/domain"
	"examcraft/internal/repository/models"
	"examcraft/internal/util"
)

// PaperDatabaseAdapter implements domain.PaperRepository on sqlx.
type PaperDatabaseAdapter struct {
	db *sqlx.DB
}

func NewPaperDatabaseAdapter(db *sqlx.DB) *PaperDatabaseAdapter {
	return &PaperDatabaseAdapter{db: db}
}

func (a *PaperDatabaseAdapter) SavePaper(ctx context.Context, paper *domain.Paper) error {
	executor := GetExecutor(ctx, a.db)
	configJSON, err := json.Marshal(paper.Config)
	if err != nil {
		return domain.NewInternalError("failed to encode paper config", err)
	}
	query := `INSERT INTO papers (id, source_id, user_id, title, config, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = executor.ExecContext(ctx, query,
		paper.ID, paper.SourceID, domain.DefaultUserID, paper.Title,
		string(configJSON), string(paper.Status), util.StringToNullString(paper.Error),
		paper.CreatedAt, paper.UpdatedAt)
	if err != nil {
		return domain.NewInternalError("failed to save paper", err)
	}
	return nil
}

func (a *PaperDatabaseAdapter) GetPaperByID(ctx context.Context, id string) (*domain.Paper, error) {
	executor := GetExecutor(ctx, a.db)
	var row models.Paper
	err := executor.GetContext(ctx, &row,
		`SELECT id, source_id, user_id, title, config, status, error, created_at, updated_at
		 FROM papers WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewInternalError("failed to get paper", err)
	}
	return paperToDomain(&row)
}

func (a *PaperDatabaseAdapter) ListPapersBySource(ctx context.Context, sourceID string) ([]*domain.Paper, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.Paper
	err := executor.SelectContext(ctx, &rows,
		`SELECT id, source_id, user_id, title, config, status, error, created_at, updated_at
		 FROM papers WHERE source_id = ? ORDER BY created_at DESC`, sourceID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list papers", err)
	}
	papers := make([]*domain.Paper, 0, len(rows))
	for i := range rows {
		paper, err := paperToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

func (a *PaperDatabaseAdapter) UpdatePaperStatus(ctx context.Context, id string, status domain.PaperStatus, errMsg string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx,
		`UPDATE papers SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), util.StringToNullString(errMsg), time.Now(), id)
	if err != nil {
		return domain.NewInternalError("failed to update paper status", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewPaperNotFoundError(id)
	}
	return nil
}

func (a *PaperDatabaseAdapter) DeletePaper(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return domain.NewInternalError("failed to delete paper", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewPaperNotFoundError(id)
	}
	return nil
}

func (a *PaperDatabaseAdapter) DeleteQuestionsByPaper(ctx context.Context, paperID string) error {
	executor := GetExecutor(ctx, a.db)
	if _, err := executor.ExecContext(ctx, `DELETE FROM questions WHERE paper_id = ?`, paperID); err != nil {
		return domain.NewInternalError("failed to delete questions", err)
	}
	return nil
}

func (a *PaperDatabaseAdapter) SaveQuestion(ctx context.Context, question *domain.Question) error {
	executor := GetExecutor(ctx, a.db)

	var options sql.NullString
	if len(question.Options) > 0 {
		raw, err := json.Marshal(question.Options)
		if err != nil {
			return domain.NewInternalError("failed to encode question options", err)
		}
		options = util.StringToNullString(string(raw))
	}
	answerKey, err := json.Marshal(question.AnswerKey)
	if err != nil {
		return domain.NewInternalError("failed to encode answer key", err)
	}
	rubric, err := json.Marshal(emptyAsSlice(question.Rubric))
	if err != nil {
		return domain.NewInternalError("failed to encode rubric", err)
	}
	tags, err := json.Marshal(emptyAsStrings(question.Tags))
	if err != nil {
		return domain.NewInternalError("failed to encode tags", err)
	}

	query := `INSERT INTO questions (id, paper_id, type, difficulty, prompt, options, answer_key, rubric, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = executor.ExecContext(ctx, query,
		question.ID, question.PaperID, string(question.Type), question.Difficulty,
		question.Prompt, options, string(answerKey), string(rubric), string(tags),
		question.CreatedAt)
	if err != nil {
		return domain.NewInternalError("failed to save question", err)
	}
	return nil
}

func (a *PaperDatabaseAdapter) SaveCitation(ctx context.Context, citation *domain.QuestionCitation) error {
	executor := GetExecutor(ctx, a.db)
	query := `INSERT INTO question_citations (id, question_id, chunk_id, snippet, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := executor.ExecContext(ctx, query,
		citation.ID, citation.QuestionID, citation.ChunkID,
		util.StringToNullString(citation.Snippet), citation.CreatedAt)
	if err != nil {
		return domain.NewInternalError("failed to save citation", err)
	}
	return nil
}

func (a *PaperDatabaseAdapter) GetQuestionsByPaper(ctx context.Context, paperID string) ([]*domain.Question, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.Question
	err := executor.SelectContext(ctx, &rows,
		`SELECT id, paper_id, type, difficulty, prompt, options, answer_key, rubric, tags, created_at
		 FROM questions WHERE paper_id = ? ORDER BY created_at ASC, id ASC`, paperID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list questions", err)
	}
	questions := make([]*domain.Question, 0, len(rows))
	for i := range rows {
		q, err := questionToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (a *PaperDatabaseAdapter) GetCitationsByQuestion(ctx context.Context, questionID string) ([]*domain.QuestionCitation, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.QuestionCitation
	err := executor.SelectContext(ctx, &rows,
		`SELECT id, question_id, chunk_id, snippet, created_at
		 FROM question_citations WHERE question_id = ? ORDER BY created_at ASC, id ASC`, questionID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list citations", err)
	}
	citations := make([]*domain.QuestionCitation, 0, len(rows))
	for i := range rows {
		citations = append(citations, &domain.QuestionCitation{
			ID:         rows[i].ID,
			QuestionID: rows[i].QuestionID,
			ChunkID:    rows[i].ChunkID,
			Snippet:    rows[i].Snippet.String,
			CreatedAt:  rows[i].CreatedAt,
		})
	}
	return citations, nil
}

func paperToDomain(row *models.Paper) (*domain.Paper, error) {
	var config domain.PaperConfig
	if row.Config != "" {
		if err := json.Unmarshal([]byte(row.Config), &config); err != nil {
			return nil, domain.NewInternalError("failed to decode paper config", err)
		}
	}
	return &domain.Paper{
		ID:        row.ID,
		SourceID:  row.SourceID,
		Title:     row.Title,
		Config:    config,
		Status:    domain.PaperStatus(row.Status),
		Error:     row.Error.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func questionToDomain(row *models.Question) (*domain.Question, error) {
	q := &domain.Question{
		ID:         row.ID,
		PaperID:    row.PaperID,
		Type:       domain.QuestionType(row.Type),
		Difficulty: row.Difficulty,
		Prompt:     row.Prompt,
		CreatedAt:  row.CreatedAt,
	}
	if row.Options.Valid && row.Options.String != "" {
		if err := json.Unmarshal([]byte(row.Options.String), &q.Options); err != nil {
			return nil, domain.NewInternalError("failed to decode question options", err)
		}
	}
	if row.AnswerKey != "" {
		if err := json.Unmarshal([]byte(row.AnswerKey), &q.AnswerKey); err != nil {
			return nil, domain.NewInternalError("failed to decode answer key", err)
		}
	}
	if row.Rubric != "" {
		if err := json.Unmarshal([]byte(row.Rubric), &q.Rubric); err != nil {
			return nil, domain.NewInternalError("failed to decode rubric", err)
		}
	}
	if row.Tags != "" {
		if err := json.Unmarshal([]byte(row.Tags), &q.Tags); err != nil {
			return nil, domain.NewInternalError("failed to decode tags", err)
		}
	}
	return q, nil
}

func emptyAsSlice(rubric []domain.RubricPoint) []domain.RubricPoint {
	if rubric == nil {
		return []domain.RubricPoint{}
	}
	return rubric
}

func emptyAsStrings(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
