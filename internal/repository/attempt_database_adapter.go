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

// AttemptDatabaseAdapter implements domain.AttemptRepository on sqlx.
type AttemptDatabaseAdapter struct {
	db *sqlx.DB
}

func NewAttemptDatabaseAdapter(db *sqlx.DB) *AttemptDatabaseAdapter {
	return &AttemptDatabaseAdapter{db: db}
}

func (a *AttemptDatabaseAdapter) SaveAttempt(ctx context.Context, attempt *domain.Attempt) error {
	executor := GetExecutor(ctx, a.db)
	query := `INSERT INTO attempts (id, paper_id, user_id, status, error, started_at, submitted_at, graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := executor.ExecContext(ctx, query,
		attempt.ID, attempt.PaperID, attempt.UserID, string(attempt.Status),
		util.StringToNullString(attempt.Error), attempt.StartedAt,
		util.TimePtrToNullTime(attempt.SubmittedAt), util.TimePtrToNullTime(attempt.GradedAt))
	if err != nil {
		return domain.NewInternalError("failed to save attempt", err)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) GetAttemptByID(ctx context.Context, id string) (*domain.Attempt, error) {
	executor := GetExecutor(ctx, a.db)
	var row models.Attempt
	err := executor.GetContext(ctx, &row,
		`SELECT id, paper_id, user_id, status, error, started_at, submitted_at, graded_at
		 FROM attempts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewInternalError("failed to get attempt", err)
	}
	return attemptToDomain(&row), nil
}

func (a *AttemptDatabaseAdapter) ListAttempts(ctx context.Context, userID string, limit int) ([]*domain.AttemptSummary, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.AttemptSummary
	query := `SELECT a.id, a.paper_id, a.user_id, a.status, a.error, a.started_at, a.submitted_at, a.graded_at,
		p.title AS paper_title,
		(SELECT COUNT(*) FROM questions q WHERE q.paper_id = a.paper_id) AS total_questions,
		(SELECT COUNT(*) FROM grades g WHERE g.attempt_id = a.id) AS graded_questions,
		(SELECT COALESCE(SUM(g.score), 0) FROM grades g WHERE g.attempt_id = a.id) AS score,
		(SELECT COALESCE(SUM(g.max_score), 0) FROM grades g WHERE g.attempt_id = a.id) AS max_score
		FROM attempts a
		JOIN papers p ON p.id = a.paper_id
		WHERE a.user_id = ?
		ORDER BY a.started_at DESC
		LIMIT ?`
	if err := executor.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, domain.NewInternalError("failed to list attempts", err)
	}
	summaries := make([]*domain.AttemptSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, &domain.AttemptSummary{
			Attempt:         *attemptToDomain(&rows[i].Attempt),
			PaperTitle:      rows[i].PaperTitle,
			TotalQuestions:  rows[i].TotalQuestions,
			GradedQuestions: rows[i].GradedQuestions,
			Score:           rows[i].Score.Float64,
			MaxScore:        rows[i].MaxScore.Float64,
		})
	}
	return summaries, nil
}

func (a *AttemptDatabaseAdapter) MarkSubmitted(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx,
		`UPDATE attempts SET status = ?, submitted_at = ?, error = NULL WHERE id = ?`,
		string(domain.AttemptSubmitted), time.Now(), id)
	if err != nil {
		return domain.NewInternalError("failed to mark attempt submitted", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewAttemptNotFoundError(id)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) MarkGraded(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx,
		`UPDATE attempts SET status = ?, graded_at = ?, error = NULL WHERE id = ?`,
		string(domain.AttemptGraded), time.Now(), id)
	if err != nil {
		return domain.NewInternalError("failed to mark attempt graded", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewAttemptNotFoundError(id)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) SetAttemptError(ctx context.Context, id string, errMsg string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx,
		`UPDATE attempts SET error = ? WHERE id = ?`,
		util.StringToNullString(errMsg), id)
	if err != nil {
		return domain.NewInternalError("failed to set attempt error", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewAttemptNotFoundError(id)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) DeleteAttempt(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, a.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM attempts WHERE id = ?`, id)
	if err != nil {
		return domain.NewInternalError("failed to delete attempt", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.NewAttemptNotFoundError(id)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) UpsertAnswer(ctx context.Context, answer *domain.Answer) error {
	executor := GetExecutor(ctx, a.db)
	query := `INSERT INTO answers (attempt_id, question_id, answer_text, answer_option_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			answer_text = excluded.answer_text,
			answer_option_id = excluded.answer_option_id,
			updated_at = excluded.updated_at`
	now := time.Now()
	_, err := executor.ExecContext(ctx, query,
		answer.AttemptID, answer.QuestionID,
		util.StringToNullString(answer.AnswerText),
		util.StringToNullString(answer.AnswerOptionID),
		now, now)
	if err != nil {
		return domain.NewInternalError("failed to upsert answer", err)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) GetAnswersByAttempt(ctx context.Context, attemptID string) ([]*domain.Answer, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.Answer
	err := executor.SelectContext(ctx, &rows,
		`SELECT attempt_id, question_id, answer_text, answer_option_id, created_at, updated_at
		 FROM answers WHERE attempt_id = ?`, attemptID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list answers", err)
	}
	answers := make([]*domain.Answer, 0, len(rows))
	for i := range rows {
		answers = append(answers, &domain.Answer{
			AttemptID:      rows[i].AttemptID,
			QuestionID:     rows[i].QuestionID,
			AnswerText:     rows[i].AnswerText.String,
			AnswerOptionID: rows[i].AnswerOptionID.String,
			CreatedAt:      rows[i].CreatedAt,
			UpdatedAt:      rows[i].UpdatedAt,
		})
	}
	return answers, nil
}

func (a *AttemptDatabaseAdapter) UpsertGrade(ctx context.Context, grade *domain.Grade) error {
	executor := GetExecutor(ctx, a.db)
	verdictJSON, err := json.Marshal(grade.Verdict)
	if err != nil {
		return domain.NewInternalError("failed to encode grade verdict", err)
	}
	citationsJSON, err := json.Marshal(emptyAsStrings(grade.Citations))
	if err != nil {
		return domain.NewInternalError("failed to encode grade citations", err)
	}
	query := `INSERT INTO grades (attempt_id, question_id, score, max_score, verdict, feedback_md, citations, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			score = excluded.score,
			max_score = excluded.max_score,
			verdict = excluded.verdict,
			feedback_md = excluded.feedback_md,
			citations = excluded.citations,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`
	now := time.Now()
	_, err = executor.ExecContext(ctx, query,
		grade.AttemptID, grade.QuestionID, grade.Score, grade.MaxScore,
		string(verdictJSON), grade.FeedbackMd, string(citationsJSON),
		util.Float64ToNullFloat64(grade.Confidence), now, now)
	if err != nil {
		return domain.NewInternalError("failed to upsert grade", err)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) GetGradesByAttempt(ctx context.Context, attemptID string) ([]*domain.Grade, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.Grade
	err := executor.SelectContext(ctx, &rows,
		`SELECT attempt_id, question_id, score, max_score, verdict, feedback_md, citations, confidence, created_at, updated_at
		 FROM grades WHERE attempt_id = ?`, attemptID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list grades", err)
	}
	grades := make([]*domain.Grade, 0, len(rows))
	for i := range rows {
		grade, err := gradeToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		grades = append(grades, grade)
	}
	return grades, nil
}

func (a *AttemptDatabaseAdapter) UpsertWrongItem(ctx context.Context, userID, questionID string, weakTags []string) error {
	executor := GetExecutor(ctx, a.db)
	tagsJSON, err := json.Marshal(emptyAsStrings(weakTags))
	if err != nil {
		return domain.NewInternalError("failed to encode weak tags", err)
	}
	query := `INSERT INTO wrong_items (user_id, question_id, last_wrong_at, wrong_count, weak_tags)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (user_id, question_id) DO UPDATE SET
			last_wrong_at = excluded.last_wrong_at,
			wrong_count = wrong_items.wrong_count + 1,
			weak_tags = excluded.weak_tags`
	if _, err := executor.ExecContext(ctx, query, userID, questionID, time.Now(), string(tagsJSON)); err != nil {
		return domain.NewInternalError("failed to upsert wrong item", err)
	}
	return nil
}

func (a *AttemptDatabaseAdapter) ListWrongItems(ctx context.Context, userID string, limit int) ([]*domain.WrongItem, error) {
	executor := GetExecutor(ctx, a.db)
	var rows []models.WrongItem
	err := executor.SelectContext(ctx, &rows,
		`SELECT user_id, question_id, last_wrong_at, wrong_count, weak_tags
		 FROM wrong_items WHERE user_id = ? ORDER BY last_wrong_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, domain.NewInternalError("failed to list wrong items", err)
	}
	items := make([]*domain.WrongItem, 0, len(rows))
	for i := range rows {
		var tags []string
		if rows[i].WeakTags != "" {
			if err := json.Unmarshal([]byte(rows[i].WeakTags), &tags); err != nil {
				return nil, domain.NewInternalError("failed to decode weak tags", err)
			}
		}
		items = append(items, &domain.WrongItem{
			UserID:      rows[i].UserID,
			QuestionID:  rows[i].QuestionID,
			LastWrongAt: rows[i].LastWrongAt,
			WrongCount:  rows[i].WrongCount,
			WeakTags:    tags,
		})
	}
	return items, nil
}

func attemptToDomain(row *models.Attempt) *domain.Attempt {
	return &domain.Attempt{
		ID:          row.ID,
		PaperID:     row.PaperID,
		UserID:      row.UserID,
		Status:      domain.AttemptStatus(row.Status),
		Error:       row.Error.String,
		StartedAt:   row.StartedAt,
		SubmittedAt: util.NullTimeToPtr(row.SubmittedAt),
		GradedAt:    util.NullTimeToPtr(row.GradedAt),
	}
}

func gradeToDomain(row *models.Grade) (*domain.Grade, error) {
	grade := &domain.Grade{
		AttemptID:  row.AttemptID,
		QuestionID: row.QuestionID,
		Score:      row.Score,
		MaxScore:   row.MaxScore,
		FeedbackMd: row.FeedbackMd,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.Verdict != "" {
		if err := json.Unmarshal([]byte(row.Verdict), &grade.Verdict); err != nil {
			return nil, domain.NewInternalError("failed to decode grade verdict", err)
		}
	}
	if row.Citations != "" {
		if err := json.Unmarshal([]byte(row.Citations), &grade.Citations); err != nil {
			return nil, domain.NewInternalError("failed to decode grade citations", err)
		}
	}
	if row.Confidence.Valid {
		confidence := row.Confidence.Float64
		grade.Confidence = &confidence
	}
	return grade, nil
}
