package repository

import (
	"context"
	"errors"
	"fmt"

	"wagerbook/database"
	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository on the pool
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepository creates a new user repository bound to a transaction
func newUserRepository(tx Queryable) interfaces.UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `id, practice_balance, real_balance, daily_real_spend, last_wager_date, version, created_at, updated_at`

// GetByID retrieves a user, returning nil when it does not exist
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user entities.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.PracticeBalance,
		&user.RealBalance,
		&user.DailyRealSpend,
		&user.LastWagerDate,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, classify(err))
	}
	return &user, nil
}

// Create inserts a new user; a concurrent insert of the same id is a conflict
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (id, practice_balance, real_balance, daily_real_spend, last_wager_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING version, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.ID,
		user.PracticeBalance,
		user.RealBalance,
		user.DailyRealSpend,
		user.LastWagerDate,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.Version, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, classify(err))
	}
	return nil
}

// Update writes balances and the daily spend counter if the version still matches
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	query := `
		UPDATE users
		SET practice_balance = $3,
		    real_balance = $4,
		    daily_real_spend = $5,
		    last_wager_date = $6,
		    updated_at = $7,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`

	tag, err := r.q.Exec(ctx, query,
		user.ID,
		user.Version,
		user.PracticeBalance,
		user.RealBalance,
		user.DailyRealSpend,
		user.LastWagerDate,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, classify(err))
	}
	if err := expectOneRow(tag, "user", user.ID); err != nil {
		return err
	}
	user.Version++
	return nil
}
