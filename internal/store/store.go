// internal/store/store.go
// Package store persists meetings, participants, notifications and minutes.
// It holds no business rules: lifecycle decisions live in the dialogmote
// service, channel decisions in the dispatch orchestrator.
//
// Every function takes an explicit DBTX so that all writes belonging to one
// use case share one transaction, committed once at the top by RunInTx. The
// distribution cronjob passes the bare *sql.DB instead: its row updates are
// deliberately independent single statements.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RunInTx runs fn inside a single transaction. The transaction is rolled
// back when fn returns an error or panics, committed otherwise.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// parseUUID tolerates historical rows with malformed uuids by returning the
// zero uuid instead of failing the whole scan.
func parseUUID(s string) uuid.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}
	}
	return u
}
