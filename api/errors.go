package api

import (
	"errors"
	"net/http"

	"wagerbook/domain/entities"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorStatus maps the ledger error taxonomy onto an HTTP status and code.
// ErrTransactionFailed wraps ErrStoreConflict, so it is checked first.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, entities.ErrTransactionFailed):
		return http.StatusServiceUnavailable, "TRANSACTION_FAILED"
	case errors.Is(err, entities.ErrStoreConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, entities.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"
	case errors.Is(err, entities.ErrDailyLimitExceeded):
		return http.StatusPaymentRequired, "DAILY_LIMIT_EXCEEDED"
	case errors.Is(err, entities.ErrInvalidCurrency):
		return http.StatusBadRequest, "INVALID_CURRENCY"
	case errors.Is(err, entities.ErrInvalidLine):
		return http.StatusUnprocessableEntity, "INVALID_LINE"
	case errors.Is(err, entities.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "INVALID_AMOUNT"
	case errors.Is(err, entities.ErrNotCancellable):
		return http.StatusUnprocessableEntity, "NOT_CANCELLABLE"
	case errors.Is(err, entities.ErrMarketNotFinal):
		return http.StatusUnprocessableEntity, "MARKET_NOT_FINAL"
	case errors.Is(err, entities.ErrAlreadySettled):
		return http.StatusUnprocessableEntity, "ALREADY_SETTLED"
	case errors.Is(err, entities.ErrMarketLocked):
		return http.StatusLocked, "MARKET_LOCKED"
	case errors.Is(err, entities.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// respondError writes err as a JSON error. Internal errors are logged and not echoed.
func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		reqID, _ := c.Get(requestIDHeader)
		log.WithFields(log.Fields{
			"path":      c.FullPath(),
			"requestID": reqID,
			"error":     err,
		}).Error("HTTP handler failed")
		message = "internal error"
	}
	c.JSON(status, errorResponse{Code: code, Message: message})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: message})
}
