package api

import (
	"context"
	"net/http"
	"sync/atomic"

	"wagerbook/application"
	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"

	"github.com/gin-gonic/gin"
)

// WagerAPI is the wager lifecycle surface the HTTP layer calls
type WagerAPI interface {
	SubmitWager(ctx context.Context, req interfaces.SubmitWagerRequest) (*interfaces.SubmitWagerResult, error)
	CancelWager(ctx context.Context, userID, wagerID string, isAdmin bool) (*interfaces.CancelWagerResult, error)
	GetWager(ctx context.Context, wagerID, userID string, isAdmin bool) (*entities.Wager, error)
	GetFills(ctx context.Context, wagerID, userID string, isAdmin bool) ([]*entities.WagerFill, error)
	ListUserWagers(ctx context.Context, userID string, limit int) ([]*entities.Wager, error)
}

// AccountAPI is the balance and ledger surface the HTTP layer calls
type AccountAPI interface {
	EnsureUser(ctx context.Context, userID string) (*entities.User, bool, error)
	GetBalance(ctx context.Context, userID string) (*entities.User, error)
	History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)
	Stats(ctx context.Context, userID string) (*entities.UserStats, error)
	Audit(ctx context.Context, userID string) (*entities.AuditResult, error)
	AdjustBalance(ctx context.Context, userID string, currency entities.Currency, delta int64, description string) (*entities.Transaction, error)
}

// MarketAPI is the market surface the HTTP layer calls
type MarketAPI interface {
	GetMarket(ctx context.Context, marketID string) (*entities.Market, error)
	ApplyFeedUpdate(ctx context.Context, update entities.FeedUpdate) (*entities.Market, entities.MarketChanges, error)
	SetOverrides(ctx context.Context, marketID string, patch entities.OverridesPatch) (*entities.Market, error)
	LockMarket(ctx context.Context, marketID string) (*entities.Market, bool, error)
}

// SettlementAPI triggers settlement of a finalized market
type SettlementAPI interface {
	SettleMarket(ctx context.Context, marketID string) (*application.MarketSettlementSummary, error)
}

// Server is the HTTP surface consumed by UI collaborators
type Server struct {
	wagers     WagerAPI
	accounts   AccountAPI
	markets    MarketAPI
	settlement SettlementAPI
	ready      atomic.Bool
}

// NewServer creates a new HTTP server over the application handlers
func NewServer(wagers WagerAPI, accounts AccountAPI, markets MarketAPI, settlement SettlementAPI) *Server {
	return &Server{
		wagers:     wagers,
		accounts:   accounts,
		markets:    markets,
		settlement: settlement,
	}
}

// SetReady flips the readiness check
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if s.ready.Load() {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
	})

	v1 := r.Group("/v1", Identity())

	me := v1.Group("/users/me")
	me.POST("", s.ensureUser)
	me.GET("/balance", s.getBalance)
	me.GET("/transactions", s.getTransactions)
	me.GET("/stats", s.getStats)
	me.GET("/wagers", s.listWagers)

	v1.POST("/wagers", s.submitWager)
	v1.GET("/wagers/:id", s.getWager)
	v1.DELETE("/wagers/:id", s.cancelWager)
	v1.GET("/wagers/:id/fills", s.getFills)

	v1.GET("/markets/:id", s.getMarket)

	admin := v1.Group("", RequireAdmin())
	admin.POST("/feed/markets", s.applyFeed)
	admin.PUT("/markets/:id/overrides", s.setOverrides)
	admin.POST("/markets/:id/lock", s.lockMarket)
	admin.POST("/markets/:id/settle", s.settleMarket)
	admin.POST("/admin/users/:id/adjust", s.adjustBalance)
	admin.GET("/admin/users/:id/audit", s.auditUser)

	return r
}
