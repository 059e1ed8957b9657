package repository

import (
	"context"
	"errors"
	"fmt"

	"wagerbook/database"
	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WagerRepository implements the WagerRepository interface
type WagerRepository struct {
	q Queryable
}

// NewWagerRepository creates a new wager repository on the pool
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

func newWagerRepository(tx Queryable) interfaces.WagerRepository {
	return &WagerRepository{q: tx}
}

const wagerColumns = `
	id, user_id, market_id, currency, amount, side, is_home_side,
	requested_line::text, current_line::text,
	remaining_amount, refunded_amount, payout, status, version,
	created_at, updated_at, settled_at`

func scanWager(row pgx.Row) (*entities.Wager, error) {
	var w entities.Wager
	var requestedLine, currentLine string
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.MarketID,
		&w.Currency,
		&w.Amount,
		&w.Side,
		&w.IsHomeSide,
		&requestedLine,
		&currentLine,
		&w.RemainingAmount,
		&w.RefundedAmount,
		&w.Payout,
		&w.Status,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
		&w.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	if w.RequestedLine, err = decimal.NewFromString(requestedLine); err != nil {
		return nil, fmt.Errorf("invalid requested line %q: %w", requestedLine, err)
	}
	if w.CurrentLine, err = decimal.NewFromString(currentLine); err != nil {
		return nil, fmt.Errorf("invalid current line %q: %w", currentLine, err)
	}
	return &w, nil
}

func (r *WagerRepository) queryWagers(ctx context.Context, query string, args ...any) ([]*entities.Wager, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var wagers []*entities.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return wagers, nil
}

// Create inserts a new wager
func (r *WagerRepository) Create(ctx context.Context, wager *entities.Wager) error {
	query := `
		INSERT INTO wagers (
			id, user_id, market_id, currency, amount, side, is_home_side,
			requested_line, current_line, remaining_amount, refunded_amount, payout,
			status, created_at, updated_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12, $13, $14, $15, $16)
		RETURNING version
	`

	err := r.q.QueryRow(ctx, query,
		wager.ID,
		wager.UserID,
		wager.MarketID,
		wager.Currency,
		wager.Amount,
		wager.Side,
		wager.IsHomeSide,
		wager.RequestedLine.String(),
		wager.CurrentLine.String(),
		wager.RemainingAmount,
		wager.RefundedAmount,
		wager.Payout,
		wager.Status,
		wager.CreatedAt,
		wager.UpdatedAt,
		wager.SettledAt,
	).Scan(&wager.Version)
	if err != nil {
		return fmt.Errorf("failed to create wager %s: %w", wager.ID, classify(err))
	}
	return nil
}

// GetByID retrieves a wager, returning nil when it does not exist
func (r *WagerRepository) GetByID(ctx context.Context, id string) (*entities.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager %s: %w", id, classify(err))
	}
	return wager, nil
}

// Update writes the mutable wager fields if the version still matches
func (r *WagerRepository) Update(ctx context.Context, wager *entities.Wager) error {
	query := `
		UPDATE wagers
		SET current_line = $3::numeric,
		    remaining_amount = $4,
		    refunded_amount = $5,
		    payout = $6,
		    status = $7,
		    updated_at = $8,
		    settled_at = $9,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`

	tag, err := r.q.Exec(ctx, query,
		wager.ID,
		wager.Version,
		wager.CurrentLine.String(),
		wager.RemainingAmount,
		wager.RefundedAmount,
		wager.Payout,
		wager.Status,
		wager.UpdatedAt,
		wager.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update wager %s: %w", wager.ID, classify(err))
	}
	if err := expectOneRow(tag, "wager", wager.ID); err != nil {
		return err
	}
	wager.Version++
	return nil
}

// GetOpenCandidates returns resting wagers on one side of a book, oldest first,
// excluding the given user's own wagers
func (r *WagerRepository) GetOpenCandidates(ctx context.Context, marketID string, currency entities.Currency, isHomeSide bool, excludeUserID string) ([]*entities.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE market_id = $1
		  AND currency = $2
		  AND is_home_side = $3
		  AND user_id <> $4
		  AND status IN ('pending', 'partiallyMatched')
		  AND remaining_amount > 0
		ORDER BY created_at, id
	`

	wagers, err := r.queryWagers(ctx, query, marketID, currency, isHomeSide, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get open candidates for market %s: %w", marketID, err)
	}
	return wagers, nil
}

// GetByMarket returns a market's wagers, optionally filtered by status
func (r *WagerRepository) GetByMarket(ctx context.Context, marketID string, statuses ...entities.WagerStatus) ([]*entities.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE market_id = $1`
	args := []any{marketID}
	if len(statuses) > 0 {
		filter := make([]string, len(statuses))
		for i, s := range statuses {
			filter[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, filter)
	}
	query += ` ORDER BY created_at, id`

	wagers, err := r.queryWagers(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers for market %s: %w", marketID, err)
	}
	return wagers, nil
}

// GetByUser returns a user's most recent wagers
func (r *WagerRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Wager, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

	wagers, err := r.queryWagers(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers for user %s: %w", userID, err)
	}
	return wagers, nil
}

// UpdateCurrentLine moves the displayed line of every unlocked, unresolved wager on a market
func (r *WagerRepository) UpdateCurrentLine(ctx context.Context, marketID string, line decimal.Decimal) error {
	query := `
		UPDATE wagers
		SET current_line = $2::numeric,
		    updated_at = NOW(),
		    version = version + 1
		WHERE market_id = $1
		  AND status IN ('pending', 'partiallyMatched', 'fullyMatched')
		  AND current_line <> $2::numeric
	`

	if _, err := r.q.Exec(ctx, query, marketID, line.String()); err != nil {
		return fmt.Errorf("failed to update current line for market %s: %w", marketID, classify(err))
	}
	return nil
}

// RecordFill appends a fill to the fill log
func (r *WagerRepository) RecordFill(ctx context.Context, fill *entities.WagerFill) error {
	query := `
		INSERT INTO wager_fills (id, market_id, taker_wager_id, maker_wager_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.Exec(ctx, query,
		fill.ID,
		fill.MarketID,
		fill.TakerWagerID,
		fill.MakerWagerID,
		fill.Amount,
		fill.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record fill %s: %w", fill.ID, classify(err))
	}
	return nil
}

// GetFills returns the fills a wager took part in as taker or maker
func (r *WagerRepository) GetFills(ctx context.Context, wagerID string) ([]*entities.WagerFill, error) {
	query := `
		SELECT id, market_id, taker_wager_id, maker_wager_id, amount, created_at
		FROM wager_fills
		WHERE taker_wager_id = $1 OR maker_wager_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get fills for wager %s: %w", wagerID, classify(err))
	}
	defer rows.Close()

	fills := make([]*entities.WagerFill, 0)
	for rows.Next() {
		var f entities.WagerFill
		if err := rows.Scan(&f.ID, &f.MarketID, &f.TakerWagerID, &f.MakerWagerID, &f.Amount, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		fills = append(fills, &f)
	}
	return fills, rows.Err()
}

// GetStats aggregates a user's wagers per currency
func (r *WagerRepository) GetStats(ctx context.Context, userID string) (*entities.UserStats, error) {
	query := `
		SELECT
			currency,
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('pending', 'partiallyMatched', 'fullyMatched', 'active')),
			COUNT(*) FILTER (WHERE status = 'won'),
			COUNT(*) FILTER (WHERE status = 'lost'),
			COUNT(*) FILTER (WHERE status = 'push'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(amount), 0)::bigint,
			COALESCE(SUM(refunded_amount), 0)::bigint,
			COALESCE(SUM(payout), 0)::bigint
		FROM wagers
		WHERE user_id = $1
		GROUP BY currency
		ORDER BY currency
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for user %s: %w", userID, classify(err))
	}
	defer rows.Close()

	stats := &entities.UserStats{UserID: userID, ByCurrency: make([]entities.CurrencyStats, 0, 2)}
	for rows.Next() {
		var s entities.CurrencyStats
		if err := rows.Scan(
			&s.Currency,
			&s.Placed,
			&s.Open,
			&s.Won,
			&s.Lost,
			&s.Pushed,
			&s.Cancelled,
			&s.Staked,
			&s.Refunded,
			&s.Returned,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.ByCurrency = append(stats.ByCurrency, s)
	}
	return stats, rows.Err()
}
