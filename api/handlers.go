package api

import (
	"net/http"
	"strconv"

	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"

	"github.com/gin-gonic/gin"
)

type submitWagerRequest struct {
	MarketID   string            `json:"marketId" binding:"required"`
	Currency   entities.Currency `json:"currency" binding:"required"`
	Amount     int64             `json:"amount"`
	IsHomeSide *bool             `json:"isHomeSide" binding:"required"`
}

type adjustBalanceRequest struct {
	Currency    entities.Currency `json:"currency" binding:"required"`
	Delta       int64             `json:"delta" binding:"required"`
	Description string            `json:"description"`
}

type ensureUserResponse struct {
	User    *entities.User `json:"user"`
	Created bool           `json:"created"`
}

type lockMarketResponse struct {
	Market *entities.Market `json:"market"`
	Locked bool             `json:"locked"`
}

type feedResponse struct {
	Market  *entities.Market `json:"market"`
	Changed bool             `json:"changed"`
}

type auditResponse struct {
	*entities.AuditResult
	Balanced bool `json:"balanced"`
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (s *Server) ensureUser(c *gin.Context) {
	user, created, err := s.accounts.EnsureUser(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, ensureUserResponse{User: user, Created: created})
}

func (s *Server) getBalance(c *gin.Context) {
	user, err := s.accounts.GetBalance(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getTransactions(c *gin.Context) {
	txs, err := s.accounts.History(c.Request.Context(), userID(c), parseLimit(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.accounts.Stats(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listWagers(c *gin.Context) {
	wagers, err := s.wagers.ListUserWagers(c.Request.Context(), userID(c), parseLimit(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wagers": wagers})
}

func (s *Server) submitWager(c *gin.Context) {
	var req submitWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "marketId, currency and isHomeSide are required")
		return
	}

	result, err := s.wagers.SubmitWager(c.Request.Context(), interfaces.SubmitWagerRequest{
		UserID:     userID(c),
		MarketID:   req.MarketID,
		Currency:   req.Currency,
		Amount:     req.Amount,
		IsHomeSide: *req.IsHomeSide,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) getWager(c *gin.Context) {
	wager, err := s.wagers.GetWager(c.Request.Context(), c.Param("id"), userID(c), isAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wager)
}

func (s *Server) cancelWager(c *gin.Context) {
	result, err := s.wagers.CancelWager(c.Request.Context(), userID(c), c.Param("id"), isAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getFills(c *gin.Context) {
	fills, err := s.wagers.GetFills(c.Request.Context(), c.Param("id"), userID(c), isAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills})
}

// getMarket hides markets an admin made invisible from everyone but admins
func (s *Server) getMarket(c *gin.Context) {
	market, err := s.markets.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !market.EffectiveVisible() && !isAdmin(c) {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "market not found"})
		return
	}
	c.JSON(http.StatusOK, market)
}

func (s *Server) applyFeed(c *gin.Context) {
	var update entities.FeedUpdate
	if err := c.ShouldBindJSON(&update); err != nil || update.MarketID == "" {
		respondBadRequest(c, "a feed update with marketId is required")
		return
	}

	market, changes, err := s.markets.ApplyFeedUpdate(c.Request.Context(), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feedResponse{Market: market, Changed: changes.Any()})
}

func (s *Server) setOverrides(c *gin.Context) {
	var patch entities.OverridesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid overrides")
		return
	}

	market, err := s.markets.SetOverrides(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, market)
}

func (s *Server) lockMarket(c *gin.Context) {
	market, locked, err := s.markets.LockMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lockMarketResponse{Market: market, Locked: locked})
}

func (s *Server) settleMarket(c *gin.Context) {
	summary, err := s.settlement.SettleMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) adjustBalance(c *gin.Context) {
	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "currency and a non-zero delta are required")
		return
	}

	tx, err := s.accounts.AdjustBalance(c.Request.Context(), c.Param("id"), req.Currency, req.Delta, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *Server) auditUser(c *gin.Context) {
	audit, err := s.accounts.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, auditResponse{AuditResult: audit, Balanced: audit.Balanced()})
}
