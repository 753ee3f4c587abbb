package infra

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// IsNoRows reports whether err is the pgx no-rows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// TxRunner executes a function inside a single database transaction. The
// transaction commits only when fn returns nil; any error rolls the whole
// transaction back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(SQLExecutor) error) error
}

// PoolTxRunner is the pgxpool-backed TxRunner.
type PoolTxRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
}

func NewPoolTxRunner(pool *pgxpool.Pool, logger zerolog.Logger) *PoolTxRunner {
	return &PoolTxRunner{Pool: pool, Logger: logger}
}

func (r *PoolTxRunner) InTx(ctx context.Context, fn func(SQLExecutor) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txExecutor{tx: tx, logger: r.Logger}); err != nil {
		r.Logger.Error().Err(err).Msg("tx rolled back")
		return err
	}
	return tx.Commit(ctx)
}

// txExecutor applies the same sqlinline marker discipline as SQLRunner to
// statements running inside a transaction.
type txExecutor struct {
	tx     pgx.Tx
	logger zerolog.Logger
}

func (t *txExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	tag, err := t.tx.Exec(ctx, trimmed, args...)
	if err != nil {
		t.logger.Error().Err(err).Msgf("sql[%s] tx error", marker)
	}
	return tag, err
}

func (t *txExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return loggingRow{row: t.tx.QueryRow(ctx, trimmed, args...), logger: t.logger, marker: marker}
}

func (t *txExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, trimmed, args...)
	if err != nil {
		t.logger.Error().Err(err).Msgf("sql[%s] tx error", marker)
		return nil, err
	}
	return loggingRows{Rows: rows, logger: t.logger, marker: marker}, nil
}

var _ SQLExecutor = (*txExecutor)(nil)
