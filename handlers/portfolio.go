package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"papertrade/engine"
	"papertrade/middleware"
	"papertrade/quotes"
)

type TradeInput struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares int64  `json:"shares"`
}

func Buy(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uint)

	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := eng.Buy(c.Request.Context(), userID, input.Symbol, input.Shares); err != nil {
		c.JSON(tradeStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Purchase executed"})
}

func Sell(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uint)

	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := eng.Sell(c.Request.Context(), userID, input.Symbol, input.Shares); err != nil {
		c.JSON(tradeStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sale executed"})
}

// GetPortfolio returns the valuation report: each position at its live
// price, plus cash and the grand total.
func GetPortfolio(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uint)

	report, err := eng.Valuate(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to value portfolio"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetHistory returns the user's transaction log, newest first.
func GetHistory(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uint)

	txs, err := eng.History(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, txs)
}

// GetQuote looks up a live quote without trading on it.
func GetQuote(c *gin.Context) {
	quote, err := provider.Lookup(c.Request.Context(), c.Param("symbol"))
	if errors.Is(err, quotes.ErrUnknownSymbol) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to fetch stock data"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// RebuildHoldings recomputes the caller's holdings from the transaction
// log, repairing the materialized view if it drifted.
func RebuildHoldings(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uint)

	if err := eng.RebuildHoldings(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rebuild holdings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Holdings rebuilt from transaction log"})
}

// tradeStatus maps engine failures to HTTP statuses. All of them are
// user-correctable, so none map to 5xx except quote outages.
func tradeStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidShareCount), errors.Is(err, engine.ErrUnknownSymbol):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrQuoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
