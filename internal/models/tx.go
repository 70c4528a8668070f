package models

import (
	"context"
	"errors"
	"fmt"

	go_sqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgreSQL error codes that signal a retryable failure.
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgQueryCanceled        = "57014"
)

// SQLite primary result codes that signal a retryable failure.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// Transaction runs fn in a database transaction.
//
// On PostgreSQL, lock waits inside the transaction are bounded by
// LockTimeout. Errors caused by lock timeouts, deadlocks or busy
// databases are returned wrapping ErrTransient.
func Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" && LockTimeout > 0 {
			err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", LockTimeout.Milliseconds())).Error
			if err != nil {
				return err
			}
		}

		return fn(tx)
	})

	if err == nil || errors.Is(err, ErrTransient) || errors.Is(err, ErrGeneral) {
		return err
	}

	if IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	// Failures to begin or commit bypass the callbacks
	if closed(err) {
		log.Error().Msgf("%T: %v", err, err.Error())
		return ErrGeneral
	}

	return err
}

// ForUpdate adds a row lock to the next query of tx.
//
// SQLite does not support row locks. The clause is omitted there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}

	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// IsTransient reports if err is a failure the caller can retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure, pgQueryCanceled:
			return true
		}
		return false
	}

	var sqliteErr *go_sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
	}

	return false
}
