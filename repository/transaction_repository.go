package repository

import (
	"context"
	"fmt"

	"wagerbook/database"
	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// TransactionRepository implements the append-only TransactionRepository interface
type TransactionRepository struct {
	q Queryable
}

// NewTransactionRepository creates a new transaction repository on the pool
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

func newTransactionRepository(tx Queryable) interfaces.TransactionRepository {
	return &TransactionRepository{q: tx}
}

// Record appends a ledger entry
func (r *TransactionRepository) Record(ctx context.Context, tx *entities.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, kind, currency, amount, balance_after, wager_id, status, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Kind,
		tx.Currency,
		tx.Amount,
		tx.BalanceAfter,
		tx.WagerID,
		tx.Status,
		tx.Description,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction for user %s: %w", tx.UserID, classify(err))
	}
	return nil
}

func (r *TransactionRepository) query(ctx context.Context, query string, args ...any) ([]*entities.Transaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	txs := make([]*entities.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var tx entities.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Kind,
		&tx.Currency,
		&tx.Amount,
		&tx.BalanceAfter,
		&tx.WagerID,
		&tx.Status,
		&tx.Description,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

const transactionColumns = `id, user_id, kind, currency, amount, balance_after, wager_id, status, description, created_at`

// GetByUser returns a user's most recent ledger entries, newest first
func (r *TransactionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

	txs, err := r.query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for user %s: %w", userID, err)
	}
	return txs, nil
}

// GetByWager returns every ledger entry tied to a wager, oldest first
func (r *TransactionRepository) GetByWager(ctx context.Context, wagerID string) ([]*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE wager_id = $1 ORDER BY created_at, id`

	txs, err := r.query(ctx, query, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for wager %s: %w", wagerID, err)
	}
	return txs, nil
}

// SumByCurrency replays a user's ledger into per-currency totals
func (r *TransactionRepository) SumByCurrency(ctx context.Context, userID string) (map[entities.Currency]int64, error) {
	query := `
		SELECT currency, COALESCE(SUM(amount), 0)::bigint
		FROM transactions
		WHERE user_id = $1
		GROUP BY currency
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions for user %s: %w", userID, classify(err))
	}
	defer rows.Close()

	sums := map[entities.Currency]int64{
		entities.CurrencyPractice: 0,
		entities.CurrencyReal:     0,
	}
	for rows.Next() {
		var currency entities.Currency
		var sum int64
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan transaction sum: %w", err)
		}
		sums[currency] = sum
	}
	return sums, rows.Err()
}
