package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"examcraft/internal/domain"
	"examcraft/internal/logger"
)

type contextKey string

// TransactionContextKey is the context key under which an open *sqlx.Tx travels.
const TransactionContextKey contextKey = "dbTransaction"

// DBTX is the subset of sqlx methods shared by *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
}

// GetExecutor returns the transaction from ctx if one is open, else the base DB.
func GetExecutor(ctx context.Context, db *sqlx.DB) DBTX {
	if tx, ok := ctx.Value(TransactionContextKey).(*sqlx.Tx); ok && tx != nil {
		return tx
	}
	return db
}

type sqlxTransactionManager struct {
	db *sqlx.DB
}

// NewTransactionManager creates a TransactionManager backed by sqlx transactions.
func NewTransactionManager(db *sqlx.DB) domain.TransactionManager {
	return &sqlxTransactionManager{db: db}
}

func (m *sqlxTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(TransactionContextKey).(*sqlx.Tx); ok && tx != nil {
		// Already inside a transaction, join it.
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewInternalError("failed to begin transaction", err)
	}

	txCtx := context.WithValue(ctx, TransactionContextKey, tx)

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Get().Error("rollback after panic failed", zap.Error(rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Get().Error("transaction rollback failed", zap.Error(rbErr), zap.NamedError("cause", err))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.NewInternalError("failed to commit transaction", err)
	}
	return nil
}
