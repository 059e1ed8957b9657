package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linePtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func boolPtr(b bool) *bool { return &b }

func TestFinalScore_OutcomeFor(t *testing.T) {
	tests := []struct {
		name       string
		score      FinalScore
		line       string
		isHomeSide bool
		want       Outcome
	}{
		{"favorite covers", FinalScore{ScoreA: 24, ScoreB: 20}, "-3.5", true, OutcomeWon},
		{"underdog loses when favorite covers", FinalScore{ScoreA: 24, ScoreB: 20}, "-3.5", false, OutcomeLost},
		{"favorite fails to cover", FinalScore{ScoreA: 21, ScoreB: 20}, "-3.5", true, OutcomeLost},
		{"underdog covers", FinalScore{ScoreA: 21, ScoreB: 20}, "-3.5", false, OutcomeWon},
		{"exact margin is a push for home", FinalScore{ScoreA: 23, ScoreB: 20}, "-3", true, OutcomePush},
		{"exact margin is a push for away", FinalScore{ScoreA: 23, ScoreB: 20}, "-3", false, OutcomePush},
		{"pick em", FinalScore{ScoreA: 10, ScoreB: 14}, "0", false, OutcomeWon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.score.OutcomeFor(tt.isHomeSide, decimal.RequireFromString(tt.line)))
		})
	}
}

func TestMarket_ApplyFeed(t *testing.T) {
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	newMarket := func() *Market {
		return &Market{ID: "m1", Line: decimal.RequireFromString("-3.5"), StartTime: start, Visible: true}
	}

	t.Run("updates line while open", func(t *testing.T) {
		m := newMarket()
		changes := m.ApplyFeed(FeedUpdate{MarketID: "m1", Line: linePtr("-4")}, before)
		assert.True(t, changes.LineChanged)
		assert.True(t, m.Line.Equal(decimal.RequireFromString("-4")))
		assert.False(t, m.IsLocked)
	})

	t.Run("explicit lock freezes the line", func(t *testing.T) {
		m := newMarket()
		changes := m.ApplyFeed(FeedUpdate{MarketID: "m1", Locked: boolPtr(true)}, before)
		require.True(t, changes.Locked)
		require.NotNil(t, m.LockedLine)
		assert.True(t, m.LockedLine.Equal(decimal.RequireFromString("-3.5")))

		changes = m.ApplyFeed(FeedUpdate{MarketID: "m1", Line: linePtr("-7"), Locked: boolPtr(false)}, before)
		assert.True(t, changes.IgnoredLine)
		assert.True(t, changes.IgnoredUnlock)
		assert.True(t, m.IsLocked)
		assert.True(t, m.MatchingLine().Equal(decimal.RequireFromString("-3.5")))
	})

	t.Run("start time passing locks", func(t *testing.T) {
		m := newMarket()
		changes := m.ApplyFeed(FeedUpdate{MarketID: "m1"}, start)
		assert.True(t, changes.Locked)
		assert.False(t, m.IsOpenForWagers(start))
	})

	t.Run("final score is set once", func(t *testing.T) {
		m := newMarket()
		changes := m.ApplyFeed(FeedUpdate{MarketID: "m1", FinalScore: &FinalScore{ScoreA: 21, ScoreB: 17}}, start.Add(3*time.Hour))
		assert.True(t, changes.Finalized)
		assert.True(t, m.IsLocked, "finalizing locks")

		changes = m.ApplyFeed(FeedUpdate{MarketID: "m1", FinalScore: &FinalScore{ScoreA: 0, ScoreB: 17}}, start.Add(4*time.Hour))
		assert.True(t, changes.IgnoredScore)
		assert.Equal(t, FinalScore{ScoreA: 21, ScoreB: 17}, *m.FinalScore)
	})

	t.Run("overrides win over feed", func(t *testing.T) {
		m := newMarket()
		m.ApplyOverrides(OverridesPatch{Featured: boolPtr(true), Visible: boolPtr(false), PreservedLine: linePtr("-2.5")}, before)
		assert.True(t, m.Line.Equal(decimal.RequireFromString("-2.5")))

		changes := m.ApplyFeed(FeedUpdate{MarketID: "m1", Line: linePtr("-6"), Featured: boolPtr(false), Visible: boolPtr(true)}, before)
		assert.True(t, changes.IgnoredLine)
		assert.True(t, m.Line.Equal(decimal.RequireFromString("-2.5")))
		assert.True(t, m.EffectiveFeatured())
		assert.False(t, m.EffectiveVisible())
		assert.True(t, m.Visible, "feed value is still tracked underneath")

		m.ApplyOverrides(OverridesPatch{ClearVisible: true}, before)
		assert.True(t, m.EffectiveVisible())
	})

	t.Run("preserved line does not move a locked line", func(t *testing.T) {
		m := newMarket()
		m.Lock(before)
		changes := m.ApplyOverrides(OverridesPatch{PreservedLine: linePtr("-1")}, before)
		assert.True(t, changes.IgnoredLine)
		assert.True(t, m.MatchingLine().Equal(decimal.RequireFromString("-3.5")))
	})
}

func TestMarket_ApplyFeed_LinePrecision(t *testing.T) {
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	tests := []struct {
		name     string
		stored   string
		incoming string
		want     string
		changed  bool
	}{
		{"rounds to cents", "-3.5", "-3.125", "-3.13", true},
		{"repeated unrounded refresh is not a change", "-3.13", "-3.125", "-3.13", false},
		{"sub-cent noise is not a change", "2.5", "2.5001", "2.5", false},
		{"tiny negative rounds to zero", "1", "-0.004", "0", true},
		{"exact line kept", "0", "7.25", "7.25", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Market{ID: "m1", Line: decimal.RequireFromString(tt.stored), StartTime: start}
			changes := m.ApplyFeed(FeedUpdate{MarketID: "m1", Line: linePtr(tt.incoming)}, before)
			assert.Equal(t, tt.changed, changes.LineChanged)
			assert.True(t, m.Line.Equal(decimal.RequireFromString(tt.want)), "line is %s", m.Line)
		})
	}
}

func TestMarket_ApplyOverrides_RoundsPreservedLine(t *testing.T) {
	m := &Market{ID: "m1", Line: decimal.RequireFromString("-3")}
	changes := m.ApplyOverrides(OverridesPatch{PreservedLine: linePtr("-2.555")}, time.Now())

	assert.True(t, changes.LineChanged)
	assert.Equal(t, "-2.56", m.Line.String())
	require.NotNil(t, m.Overrides.PreservedLine)
	assert.Equal(t, "-2.56", m.Overrides.PreservedLine.String())
}

func TestValidateLine(t *testing.T) {
	tests := []struct {
		line  string
		valid bool
	}{
		{"-3.5", true},
		{"999999.99", true},
		{"-999999.99", true},
		{"999999.996", false},
		{"1000000", false},
		{"-12345678.5", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := ValidateLine(decimal.RequireFromString(tt.line))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidLine)
		})
	}
}
