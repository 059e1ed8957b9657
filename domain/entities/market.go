package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the result of a wager side against the locked line
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
	OutcomePush Outcome = "push"
	OutcomeVoid Outcome = "void" // Nothing matched; stake refunded
)

// Lines are stored as NUMERIC(8, 2)
const lineScale = 2

var maxLineMagnitude = decimal.NewFromInt(1_000_000)

// NormalizeLine rounds a line to the precision the store keeps
func NormalizeLine(line decimal.Decimal) decimal.Decimal {
	return line.Round(lineScale)
}

// ValidateLine rejects lines the store cannot hold once rounded
func ValidateLine(line decimal.Decimal) error {
	if NormalizeLine(line).Abs().GreaterThanOrEqual(maxLineMagnitude) {
		return fmt.Errorf("%w: %s is out of range", ErrInvalidLine, line.String())
	}
	return nil
}

// SideInfo is display metadata for one side of a market
type SideInfo struct {
	Name      string `json:"name"`
	ShortName string `json:"shortName,omitempty"`
}

// FinalScore is the final result; side A is the home side
type FinalScore struct {
	ScoreA int `json:"scoreA"`
	ScoreB int `json:"scoreB"`
}

// Margin returns the home side margin after applying the line
func (s FinalScore) Margin(line decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(s.ScoreA - s.ScoreB)).Add(line)
}

// OutcomeFor returns the outcome for a side given the locked line. The line is
// quoted for the home side; a zero adjusted margin is a push for both sides.
func (s FinalScore) OutcomeFor(isHomeSide bool, line decimal.Decimal) Outcome {
	margin := s.Margin(line)
	if !isHomeSide {
		margin = margin.Neg()
	}
	switch margin.Sign() {
	case 1:
		return OutcomeWon
	case -1:
		return OutcomeLost
	default:
		return OutcomePush
	}
}

// AdminOverrides are manually set fields that win over feed data
type AdminOverrides struct {
	Featured      *bool            `json:"featured,omitempty"`
	Visible       *bool            `json:"visible,omitempty"`
	PreservedLine *decimal.Decimal `json:"preservedLine,omitempty"`
}

// OverridesPatch sets or clears admin overrides
type OverridesPatch struct {
	Featured           *bool            `json:"featured,omitempty"`
	Visible            *bool            `json:"visible,omitempty"`
	PreservedLine      *decimal.Decimal `json:"preservedLine,omitempty"`
	ClearFeatured      bool             `json:"clearFeatured,omitempty"`
	ClearVisible       bool             `json:"clearVisible,omitempty"`
	ClearPreservedLine bool             `json:"clearPreservedLine,omitempty"`
}

// FeedUpdate is one upstream refresh for a market, keyed by market id.
// Nil fields carry no information.
type FeedUpdate struct {
	MarketID   string           `json:"marketId"`
	SideA      *SideInfo        `json:"sideA,omitempty"`
	SideB      *SideInfo        `json:"sideB,omitempty"`
	Line       *decimal.Decimal `json:"line,omitempty"`
	StartTime  *time.Time       `json:"startTime,omitempty"`
	Locked     *bool            `json:"locked,omitempty"`
	Featured   *bool            `json:"featured,omitempty"`
	Visible    *bool            `json:"visible,omitempty"`
	FinalScore *FinalScore      `json:"finalScore,omitempty"`
}

// Market is a bettable fixture
type Market struct {
	ID          string           `json:"id"`
	SideA       SideInfo         `json:"sideA"`
	SideB       SideInfo         `json:"sideB"`
	Line        decimal.Decimal  `json:"line"`
	LockedLine  *decimal.Decimal `json:"lockedLine,omitempty"`
	IsLocked    bool             `json:"isLocked"`
	StartTime   time.Time        `json:"startTime"`
	FinalScore  *FinalScore      `json:"finalScore,omitempty"`
	Featured    bool             `json:"featured"`
	Visible     bool             `json:"visible"`
	Overrides   AdminOverrides   `json:"adminOverrides"`
	LockedAt    *time.Time       `json:"lockedAt,omitempty"`
	FinalizedAt *time.Time       `json:"finalizedAt,omitempty"`
	SettledAt   *time.Time       `json:"settledAt,omitempty"`
	Version     int64            `json:"-"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// MarketChanges summarizes what a feed refresh or admin action did
type MarketChanges struct {
	LineChanged   bool
	Locked        bool
	Finalized     bool
	IgnoredLine   bool // Line update arrived after lock or under a preserved line
	IgnoredScore  bool // Conflicting final score after one was set
	IgnoredUnlock bool
	Metadata      bool
}

// Any reports whether the market record changed
func (c MarketChanges) Any() bool {
	return c.LineChanged || c.Locked || c.Finalized || c.Metadata
}

// NewMarketFromFeed creates a market from its first feed update
func NewMarketFromFeed(u FeedUpdate, now time.Time) *Market {
	m := &Market{
		ID:        u.MarketID,
		Visible:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u.StartTime != nil {
		m.StartTime = *u.StartTime
	}
	return m
}

// MatchingLine is the line wagers are accepted and settled at
func (m *Market) MatchingLine() decimal.Decimal {
	if m.IsLocked && m.LockedLine != nil {
		return *m.LockedLine
	}
	return m.Line
}

// EffectiveFeatured applies the admin override to the feed value
func (m *Market) EffectiveFeatured() bool {
	if m.Overrides.Featured != nil {
		return *m.Overrides.Featured
	}
	return m.Featured
}

// EffectiveVisible applies the admin override to the feed value
func (m *Market) EffectiveVisible() bool {
	if m.Overrides.Visible != nil {
		return *m.Overrides.Visible
	}
	return m.Visible
}

// IsOpenForWagers reports whether new wagers may be accepted at now
func (m *Market) IsOpenForWagers(now time.Time) bool {
	if m.IsLocked {
		return false
	}
	return m.StartTime.IsZero() || now.Before(m.StartTime)
}

// IsFinal reports whether a final score has been recorded
func (m *Market) IsFinal() bool {
	return m.FinalScore != nil
}

// SideName returns the display name for a side
func (m *Market) SideName(isHomeSide bool) string {
	if isHomeSide {
		return m.SideA.Name
	}
	return m.SideB.Name
}

// Lock freezes the current line. Locking is one-way.
func (m *Market) Lock(now time.Time) bool {
	if m.IsLocked {
		return false
	}
	line := m.Line
	m.IsLocked = true
	m.LockedLine = &line
	m.LockedAt = &now
	m.UpdatedAt = now
	return true
}

// ApplyFeed merges an upstream refresh into the market. Admin overrides are
// kept, a locked line never moves and a recorded final score never changes.
func (m *Market) ApplyFeed(u FeedUpdate, now time.Time) MarketChanges {
	var changes MarketChanges

	if u.SideA != nil && *u.SideA != m.SideA {
		m.SideA = *u.SideA
		changes.Metadata = true
	}
	if u.SideB != nil && *u.SideB != m.SideB {
		m.SideB = *u.SideB
		changes.Metadata = true
	}
	if u.Featured != nil && *u.Featured != m.Featured {
		m.Featured = *u.Featured
		changes.Metadata = true
	}
	if u.Visible != nil && *u.Visible != m.Visible {
		m.Visible = *u.Visible
		changes.Metadata = true
	}
	if u.StartTime != nil && !m.IsLocked && !u.StartTime.Equal(m.StartTime) {
		m.StartTime = *u.StartTime
		changes.Metadata = true
	}

	if u.Line != nil {
		line := NormalizeLine(*u.Line)
		switch {
		case m.IsLocked || m.Overrides.PreservedLine != nil:
			changes.IgnoredLine = !line.Equal(m.Line)
		case !line.Equal(m.Line):
			m.Line = line
			changes.LineChanged = true
		}
	}

	if u.Locked != nil && !*u.Locked && m.IsLocked {
		changes.IgnoredUnlock = true
	}
	startPassed := !m.StartTime.IsZero() && !now.Before(m.StartTime)
	shouldLock := (u.Locked != nil && *u.Locked) || startPassed || u.FinalScore != nil
	if shouldLock && m.Lock(now) {
		changes.Locked = true
	}

	if u.FinalScore != nil {
		if m.FinalScore == nil {
			score := *u.FinalScore
			m.FinalScore = &score
			m.FinalizedAt = &now
			changes.Finalized = true
		} else if *m.FinalScore != *u.FinalScore {
			changes.IgnoredScore = true
		}
	}

	if changes.Any() {
		m.UpdatedAt = now
	}
	return changes
}

// ApplyOverrides sets or clears admin overrides. A preserved line replaces the
// market line only while the market is open.
func (m *Market) ApplyOverrides(p OverridesPatch, now time.Time) MarketChanges {
	var changes MarketChanges

	if p.ClearFeatured {
		m.Overrides.Featured = nil
	} else if p.Featured != nil {
		v := *p.Featured
		m.Overrides.Featured = &v
	}
	if p.ClearVisible {
		m.Overrides.Visible = nil
	} else if p.Visible != nil {
		v := *p.Visible
		m.Overrides.Visible = &v
	}
	if p.ClearPreservedLine {
		m.Overrides.PreservedLine = nil
	} else if p.PreservedLine != nil {
		line := NormalizeLine(*p.PreservedLine)
		m.Overrides.PreservedLine = &line
		if m.IsLocked {
			changes.IgnoredLine = !line.Equal(m.MatchingLine())
		} else if !line.Equal(m.Line) {
			m.Line = line
			changes.LineChanged = true
		}
	}

	changes.Metadata = true
	m.UpdatedAt = now
	return changes
}
