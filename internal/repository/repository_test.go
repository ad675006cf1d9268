package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examcraft/internal/config"
	"examcraft/internal/domain"
	"examcraft/internal/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Env: "test", Level: "error"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestSourceDatabaseAdapter_GetSourceByID(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewSourceDatabaseAdapter(db)

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "user_id", "type", "title", "status", "error", "created_at", "updated_at"}).
			AddRow("src1", domain.DefaultUserID, "PASTE", "Notes", "READY", nil, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, type, title, status, error, created_at, updated_at FROM sources WHERE id = ?`)).
			WithArgs("src1").
			WillReturnRows(rows)

		source, err := adapter.GetSourceByID(context.Background(), "src1")
		require.NoError(t, err)
		require.NotNil(t, source)
		assert.Equal(t, domain.SourceReady, source.Status)
		assert.Equal(t, domain.SourcePaste, source.Type)
		assert.Empty(t, source.Error)
	})

	t.Run("not found returns nil without error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, type, title, status, error, created_at, updated_at FROM sources WHERE id = ?`)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		source, err := adapter.GetSourceByID(context.Background(), "missing")
		assert.NoError(t, err)
		assert.Nil(t, source)
	})
}

func TestSourceDatabaseAdapter_UpdateSourceStatus(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewSourceDatabaseAdapter(db)

	t.Run("updates status and error", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE sources SET status = ?, error = ?, updated_at = ? WHERE id = ?`)).
			WithArgs("FAILED", "No chunks generated", sqlmock.AnyArg(), "src1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.UpdateSourceStatus(context.Background(), "src1", domain.SourceFailed, "No chunks generated")
		assert.NoError(t, err)
	})

	t.Run("missing source yields not found", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE sources SET status = ?, error = ?, updated_at = ? WHERE id = ?`)).
			WithArgs("READY", nil, sqlmock.AnyArg(), "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := adapter.UpdateSourceStatus(context.Background(), "ghost", domain.SourceReady, "")
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.CodeSourceNotFound, domainErr.Code)
	})
}

func TestSourceDatabaseAdapter_SaveChunks(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewSourceDatabaseAdapter(db)

	now := time.Now()
	chunks := []*domain.Chunk{
		{ID: "c1", DocumentID: "doc1", ChunkIndex: 0, Text: "first", Meta: domain.ChunkMeta{ParaStart: 0, ParaEnd: 1}, CreatedAt: now},
		{ID: "c2", DocumentID: "doc1", ChunkIndex: 1, Text: "second", Meta: domain.ChunkMeta{Heading: "Intro", ParaStart: 2, ParaEnd: 2}, CreatedAt: now},
	}
	for range chunks {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chunks`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	err := adapter.SaveChunks(context.Background(), chunks)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceDatabaseAdapter_DeleteDocumentsBySource(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewSourceDatabaseAdapter(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE source_id = ?`)).
		WithArgs("src1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := adapter.DeleteDocumentsBySource(context.Background(), "src1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptDatabaseAdapter_UpsertWrongItem(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewAttemptDatabaseAdapter(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wrong_items`)).
		WithArgs(domain.DefaultUserID, "q1", sqlmock.AnyArg(), `["goroutines"]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpsertWrongItem(context.Background(), domain.DefaultUserID, "q1", []string{"goroutines"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptDatabaseAdapter_MarkGradedClearsError(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewAttemptDatabaseAdapter(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE attempts SET status = ?, graded_at = ?, error = NULL WHERE id = ?`)).
		WithArgs("GRADED", sqlmock.AnyArg(), "att1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.MarkGraded(context.Background(), "att1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_CommitAndRollback(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	adapter := NewSourceDatabaseAdapter(db)

	t.Run("commits when fn succeeds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chunks`)).
			WithArgs("src1").
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
			return adapter.DeleteChunksBySource(ctx, "src1")
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		wantErr := errors.New("boom")
		err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("joins an existing transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
			return tm.WithTransaction(ctx, func(ctx context.Context) error {
				return nil
			})
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
