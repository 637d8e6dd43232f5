package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"city-stats-platform/pkg/logging"
)

// Executor is satisfied by both *DB and *Tx so repository code can run the
// same statements inside or outside a transaction. Queries use '?'
// placeholders; they are rebound for the active driver.
type Executor interface {
	ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error
}

// Tx wraps sqlx.Tx with the same instrumentation as DB
type Tx struct {
	tx     *sqlx.Tx
	parent *DB
}

// ExecContext executes a command inside the transaction
func (t *Tx) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	return execContext(ctx, t.tx, t.parent, queryType, query, args...)
}

// GetContext executes a single-row query inside the transaction
func (t *Tx) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	return getContext(ctx, t.tx, t.parent, queryType, dest, query, args...)
}

// SelectContext executes a multi-row query inside the transaction
func (t *Tx) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	return selectContext(ctx, t.tx, t.parent, queryType, dest, query, args...)
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction; calling it after Commit is a no-op
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func execContext(ctx context.Context, ext sqlx.ExtContext, d *DB, queryType, query string, args ...interface{}) (sql.Result, error) {
	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())

		d.logger.Debug(ctx, "[DB_EXEC] Command executed", logging.Fields{
			"query_type":  queryType,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	result, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		d.metrics.RecordDBError("exec_error")
		d.logger.Error(ctx, "[DB_EXEC_ERROR] Command failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return nil, err
	}

	return result, nil
}

func getContext(ctx context.Context, q sqlx.ExtContext, d *DB, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if err != nil && err != sql.ErrNoRows {
		d.metrics.RecordDBError("get_error")
		d.logger.Error(ctx, "[DB_GET_ERROR] Get query failed", logging.Fields{
			"query_type": queryType,
		}, err)
	}

	return err
}

func selectContext(ctx context.Context, q sqlx.ExtContext, d *DB, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
	if err != nil {
		d.metrics.RecordDBError("select_error")
		d.logger.Error(ctx, "[DB_SELECT_ERROR] Select query failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return err
	}

	return nil
}
