package services

import (
	"fmt"
	"sort"
	"time"

	"wagerbook/domain/entities"

	"github.com/google/uuid"
)

// MatchingEngine pairs a new wager against resting opposing wagers. It is pure:
// callers load candidates and persist the mutated wagers in one atomic unit.
type MatchingEngine struct{}

// NewMatchingEngine creates a new matching engine
func NewMatchingEngine() *MatchingEngine {
	return &MatchingEngine{}
}

// MatchResult lists the fills produced and the resting wagers they touched
type MatchResult struct {
	Fills  []*entities.WagerFill
	Makers []*entities.Wager
}

// Filled returns the total stake matched for the taker
func (r *MatchResult) Filled() int64 {
	var total int64
	for _, f := range r.Fills {
		total += f.Amount
	}
	return total
}

// Match fills taker against candidates in FIFO order of creation. Line
// differences between wagers are ignored; each keeps the line it was accepted at.
// Candidates on the same side, in another book or owned by the taker's user
// are skipped.
func (e *MatchingEngine) Match(taker *entities.Wager, candidates []*entities.Wager, now time.Time) (*MatchResult, error) {
	result := &MatchResult{}
	if !taker.IsOpen() || taker.RemainingAmount == 0 {
		return result, nil
	}

	book := make([]*entities.Wager, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == taker.ID || c.UserID == taker.UserID {
			continue
		}
		if !taker.IsOpposing(c) || !c.IsOpen() || c.RemainingAmount <= 0 {
			continue
		}
		book = append(book, c)
	}
	sort.SliceStable(book, func(i, j int) bool {
		if book[i].CreatedAt.Equal(book[j].CreatedAt) {
			return book[i].ID < book[j].ID
		}
		return book[i].CreatedAt.Before(book[j].CreatedAt)
	})

	for _, maker := range book {
		if taker.RemainingAmount == 0 {
			break
		}

		qty := min(taker.RemainingAmount, maker.RemainingAmount)
		if err := maker.Fill(qty, now); err != nil {
			return nil, fmt.Errorf("failed to fill maker %s: %w", maker.ID, err)
		}
		if err := taker.Fill(qty, now); err != nil {
			return nil, fmt.Errorf("failed to fill taker %s: %w", taker.ID, err)
		}

		result.Fills = append(result.Fills, &entities.WagerFill{
			ID:           uuid.New().String(),
			MarketID:     taker.MarketID,
			TakerWagerID: taker.ID,
			MakerWagerID: maker.ID,
			Amount:       qty,
			CreatedAt:    now,
		})
		result.Makers = append(result.Makers, maker)
	}

	return result, nil
}
