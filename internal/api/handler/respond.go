// Package handler exposes the custody core over HTTP. Handlers do no
// authorization of their own beyond extracting the authenticated caller
// address; every allow/deny decision belongs to the ledger and registry.
package handler

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/equigive/equigive/internal/custody"
	"github.com/equigive/equigive/internal/ledger"
)

// writeCoreError maps a custody-core failure onto an HTTP response. All of
// these are expected, recoverable conditions: the caller always learns the
// specific reason, never a generic 500.
func writeCoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, custody.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "caller not authorized"})
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid amount"})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient balance"})
	case errors.Is(err, ledger.ErrOverflow):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "amount exceeds representable supply"})
	case errors.Is(err, custody.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseAmount parses a decimal unit amount from a request body field.
// Returns nil (after writing a 400) on malformed input; zero and negative
// values pass through so the core can reject them as InvalidAmount.
func parseAmount(c *gin.Context, s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a base-10 integer"})
		return nil
	}
	return n
}
