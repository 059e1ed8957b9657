package events

import (
	"wagerbook/domain/entities"

	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange  EventType = "balance_change"
	EventTypeUserCreated    EventType = "user_created"
	EventTypeWagerPlaced    EventType = "wager_placed"
	EventTypeWagerMatched   EventType = "wager_matched"
	EventTypeWagerCancelled EventType = "wager_cancelled"
	EventTypeWagerSettled   EventType = "wager_settled"
	EventTypeMarketChanged  EventType = "market_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is emitted for every ledger entry
type BalanceChangeEvent struct {
	UserID          string                   `json:"userId"`
	Currency        entities.Currency        `json:"currency"`
	OldBalance      int64                    `json:"oldBalance"`
	NewBalance      int64                    `json:"newBalance"`
	ChangeAmount    int64                    `json:"changeAmount"`
	TransactionID   string                   `json:"transactionId"`
	TransactionKind entities.TransactionKind `json:"transactionKind"`
	WagerID         *string                  `json:"wagerId,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new user provisioned with an opening balance
type UserCreatedEvent struct {
	UserID                 string `json:"userId"`
	InitialPracticeBalance int64  `json:"initialPracticeBalance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// WagerPlacedEvent represents an accepted wager
type WagerPlacedEvent struct {
	WagerID    string            `json:"wagerId"`
	UserID     string            `json:"userId"`
	MarketID   string            `json:"marketId"`
	Currency   entities.Currency `json:"currency"`
	Amount     int64             `json:"amount"`
	IsHomeSide bool              `json:"isHomeSide"`
	Line       decimal.Decimal   `json:"line"`
}

func (e WagerPlacedEvent) Type() EventType {
	return EventTypeWagerPlaced
}

// WagerMatchedEvent represents one fill between two opposing wagers
type WagerMatchedEvent struct {
	FillID       string `json:"fillId"`
	MarketID     string `json:"marketId"`
	TakerWagerID string `json:"takerWagerId"`
	MakerWagerID string `json:"makerWagerId"`
	Amount       int64  `json:"amount"`
}

func (e WagerMatchedEvent) Type() EventType {
	return EventTypeWagerMatched
}

// CancelReason explains why unmatched stake was released
type CancelReason string

const (
	CancelReasonOwner      CancelReason = "owner"
	CancelReasonMarketLock CancelReason = "market_locked"
	CancelReasonSettlement CancelReason = "settlement"
)

// WagerCancelledEvent represents unmatched stake released back to the user
type WagerCancelledEvent struct {
	WagerID      string               `json:"wagerId"`
	UserID       string               `json:"userId"`
	MarketID     string               `json:"marketId"`
	RefundAmount int64                `json:"refundAmount"`
	Status       entities.WagerStatus `json:"status"`
	Reason       CancelReason         `json:"reason"`
}

func (e WagerCancelledEvent) Type() EventType {
	return EventTypeWagerCancelled
}

// WagerSettledEvent represents a wager resolved against a final score
type WagerSettledEvent struct {
	WagerID       string               `json:"wagerId"`
	UserID        string               `json:"userId"`
	MarketID      string               `json:"marketId"`
	Currency      entities.Currency    `json:"currency"`
	Status        entities.WagerStatus `json:"status"`
	MatchedAmount int64                `json:"matchedAmount"`
	Payout        int64                `json:"payout"`
	RefundAmount  int64                `json:"refundAmount"`
	SideName      string               `json:"sideName"`
}

func (e WagerSettledEvent) Type() EventType {
	return EventTypeWagerSettled
}

// MarketChangeKind distinguishes market change notifications
type MarketChangeKind string

const (
	MarketChangeUpdated   MarketChangeKind = "updated"
	MarketChangeLocked    MarketChangeKind = "locked"
	MarketChangeFinalized MarketChangeKind = "finalized"
)

// MarketChangedEvent is delivered to market stream subscribers
type MarketChangedEvent struct {
	MarketID   string               `json:"marketId"`
	Kind       MarketChangeKind     `json:"kind"`
	Line       decimal.Decimal      `json:"line"`
	LockedLine *decimal.Decimal     `json:"lockedLine,omitempty"`
	IsLocked   bool                 `json:"isLocked"`
	FinalScore *entities.FinalScore `json:"finalScore,omitempty"`
}

func (e MarketChangedEvent) Type() EventType {
	return EventTypeMarketChanged
}

// NewMarketChangedEvent snapshots a market for subscribers
func NewMarketChangedEvent(m *entities.Market, kind MarketChangeKind) MarketChangedEvent {
	event := MarketChangedEvent{
		MarketID: m.ID,
		Kind:     kind,
		Line:     m.Line,
		IsLocked: m.IsLocked,
	}
	if m.LockedLine != nil {
		line := *m.LockedLine
		event.LockedLine = &line
	}
	if m.FinalScore != nil {
		score := *m.FinalScore
		event.FinalScore = &score
	}
	return event
}
