package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wagerbook/database"
	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MarketRepository implements the MarketRepository interface
type MarketRepository struct {
	q Queryable
}

// NewMarketRepository creates a new market repository on the pool
func NewMarketRepository(db *database.DB) *MarketRepository {
	return &MarketRepository{q: db.Pool}
}

func newMarketRepository(tx Queryable) interfaces.MarketRepository {
	return &MarketRepository{q: tx}
}

const marketColumns = `
	id, side_a_name, side_a_short_name, side_b_name, side_b_short_name,
	line::text, locked_line::text, is_locked, start_time,
	final_score_a, final_score_b, featured, visible,
	override_featured, override_visible, override_line::text,
	locked_at, finalized_at, settled_at, version, created_at, updated_at`

func scanMarket(row pgx.Row) (*entities.Market, error) {
	var m entities.Market
	var line string
	var lockedLine, overrideLine *string
	var scoreA, scoreB *int
	err := row.Scan(
		&m.ID,
		&m.SideA.Name,
		&m.SideA.ShortName,
		&m.SideB.Name,
		&m.SideB.ShortName,
		&line,
		&lockedLine,
		&m.IsLocked,
		&m.StartTime,
		&scoreA,
		&scoreB,
		&m.Featured,
		&m.Visible,
		&m.Overrides.Featured,
		&m.Overrides.Visible,
		&overrideLine,
		&m.LockedAt,
		&m.FinalizedAt,
		&m.SettledAt,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if m.Line, err = decimal.NewFromString(line); err != nil {
		return nil, fmt.Errorf("invalid line %q: %w", line, err)
	}
	if m.LockedLine, err = parseOptionalDecimal(lockedLine); err != nil {
		return nil, err
	}
	if m.Overrides.PreservedLine, err = parseOptionalDecimal(overrideLine); err != nil {
		return nil, err
	}
	if scoreA != nil && scoreB != nil {
		m.FinalScore = &entities.FinalScore{ScoreA: *scoreA, ScoreB: *scoreB}
	}
	return &m, nil
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", *s, err)
	}
	return &d, nil
}

func optionalDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func scoreColumns(score *entities.FinalScore) (*int, *int) {
	if score == nil {
		return nil, nil
	}
	a, b := score.ScoreA, score.ScoreB
	return &a, &b
}

func (r *MarketRepository) get(ctx context.Context, query, id string) (*entities.Market, error) {
	market, err := scanMarket(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", id, classify(err))
	}
	return market, nil
}

// GetByID retrieves a market, returning nil when it does not exist
func (r *MarketRepository) GetByID(ctx context.Context, id string) (*entities.Market, error) {
	return r.get(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1`, id)
}

// GetByIDForShare reads a market and holds a share lock on it until the
// transaction ends, so a concurrent lock waits for in-flight submissions
func (r *MarketRepository) GetByIDForShare(ctx context.Context, id string) (*entities.Market, error) {
	return r.get(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1 FOR SHARE`, id)
}

// Create inserts a new market
func (r *MarketRepository) Create(ctx context.Context, market *entities.Market) error {
	query := `
		INSERT INTO markets (
			id, side_a_name, side_a_short_name, side_b_name, side_b_short_name,
			line, locked_line, is_locked, start_time, final_score_a, final_score_b,
			featured, visible, override_featured, override_visible, override_line,
			locked_at, finalized_at, settled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::numeric, $7::numeric, $8, $9, $10, $11,
			$12, $13, $14, $15, $16::numeric,
			$17, $18, $19, $20, $21
		)
		RETURNING version
	`

	scoreA, scoreB := scoreColumns(market.FinalScore)
	err := r.q.QueryRow(ctx, query,
		market.ID,
		market.SideA.Name,
		market.SideA.ShortName,
		market.SideB.Name,
		market.SideB.ShortName,
		market.Line.String(),
		optionalDecimal(market.LockedLine),
		market.IsLocked,
		market.StartTime,
		scoreA,
		scoreB,
		market.Featured,
		market.Visible,
		market.Overrides.Featured,
		market.Overrides.Visible,
		optionalDecimal(market.Overrides.PreservedLine),
		market.LockedAt,
		market.FinalizedAt,
		market.SettledAt,
		market.CreatedAt,
		market.UpdatedAt,
	).Scan(&market.Version)
	if err != nil {
		return fmt.Errorf("failed to create market %s: %w", market.ID, classify(err))
	}
	return nil
}

// Update writes the market if the version still matches
func (r *MarketRepository) Update(ctx context.Context, market *entities.Market) error {
	query := `
		UPDATE markets
		SET side_a_name = $3,
		    side_a_short_name = $4,
		    side_b_name = $5,
		    side_b_short_name = $6,
		    line = $7::numeric,
		    locked_line = $8::numeric,
		    is_locked = $9,
		    start_time = $10,
		    final_score_a = $11,
		    final_score_b = $12,
		    featured = $13,
		    visible = $14,
		    override_featured = $15,
		    override_visible = $16,
		    override_line = $17::numeric,
		    locked_at = $18,
		    finalized_at = $19,
		    settled_at = $20,
		    updated_at = $21,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`

	scoreA, scoreB := scoreColumns(market.FinalScore)
	tag, err := r.q.Exec(ctx, query,
		market.ID,
		market.Version,
		market.SideA.Name,
		market.SideA.ShortName,
		market.SideB.Name,
		market.SideB.ShortName,
		market.Line.String(),
		optionalDecimal(market.LockedLine),
		market.IsLocked,
		market.StartTime,
		scoreA,
		scoreB,
		market.Featured,
		market.Visible,
		market.Overrides.Featured,
		market.Overrides.Visible,
		optionalDecimal(market.Overrides.PreservedLine),
		market.LockedAt,
		market.FinalizedAt,
		market.SettledAt,
		market.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update market %s: %w", market.ID, classify(err))
	}
	if err := expectOneRow(tag, "market", market.ID); err != nil {
		return err
	}
	market.Version++
	return nil
}

func (r *MarketRepository) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

// GetDueForLock returns unlocked markets whose start time has passed
func (r *MarketRepository) GetDueForLock(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := r.ids(ctx, `SELECT id FROM markets WHERE NOT is_locked AND start_time <= $1 ORDER BY start_time, id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get markets due for lock: %w", err)
	}
	return ids, nil
}

// GetLockedWithOpenWagers returns locked markets that still have wagers awaiting the lock transition
func (r *MarketRepository) GetLockedWithOpenWagers(ctx context.Context) ([]string, error) {
	query := `
		SELECT m.id
		FROM markets m
		WHERE m.is_locked
		  AND EXISTS (
			SELECT 1 FROM wagers w
			WHERE w.market_id = m.id
			  AND w.status IN ('pending', 'partiallyMatched', 'fullyMatched')
		  )
		ORDER BY m.locked_at, m.id
	`

	ids, err := r.ids(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get locked markets with open wagers: %w", err)
	}
	return ids, nil
}

// GetFinalizedUnsettled returns markets with a final score that are not yet marked settled
func (r *MarketRepository) GetFinalizedUnsettled(ctx context.Context) ([]string, error) {
	query := `
		SELECT id FROM markets
		WHERE final_score_a IS NOT NULL AND settled_at IS NULL
		ORDER BY finalized_at, id
	`

	ids, err := r.ids(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get finalized unsettled markets: %w", err)
	}
	return ids, nil
}
