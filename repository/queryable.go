package repository

import (
	"context"
	"errors"
	"fmt"

	"wagerbook/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryable is satisfied by both the pool and a transaction
type Queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
)

// classify maps PostgreSQL errors onto the domain error taxonomy
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
		return fmt.Errorf("%w: %s (%s)", entities.ErrStoreConflict, pgErr.Message, pgErr.Code)
	case pgCheckViolation:
		if pgErr.TableName == "users" {
			return fmt.Errorf("%w: constraint %s", entities.ErrInsufficientFunds, pgErr.ConstraintName)
		}
		return err
	default:
		return err
	}
}

// expectOneRow turns a versioned update that matched nothing into a conflict
func expectOneRow(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s was modified concurrently", entities.ErrStoreConflict, kind, id)
	}
	return nil
}
