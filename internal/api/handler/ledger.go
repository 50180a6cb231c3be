package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equigive/equigive/internal/ledger"
)

// LedgerHandler exposes read-only endpoints over the ledger: balances,
// supply, and the append-only audit log.
type LedgerHandler struct {
	ledger ledger.Ledger
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(lg ledger.Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: lg, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/accounts/:address/balance", h.Balance)
	rg.GET("/supply", h.Supply)

	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/events", h.ListEvents)
		l.GET("/events/:seq", h.GetEvent)
	}
}

// Balance handles GET /accounts/:address/balance.
func (h *LedgerHandler) Balance(c *gin.Context) {
	addr := ledger.Address(c.Param("address"))
	bal, err := h.ledger.BalanceOf(c.Request.Context(), addr)
	if err != nil {
		h.logger.Error("balance read", zap.String("address", string(addr)), zap.Error(err))
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": bal.String()})
}

// Supply handles GET /supply.
func (h *LedgerHandler) Supply(c *gin.Context) {
	supply, err := h.ledger.TotalSupply(c.Request.Context())
	if err != nil {
		h.logger.Error("supply read", zap.Error(err))
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_supply": supply.String()})
}

// Overview handles GET /ledger — the event count and current chain root.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.ledger.EventCount(ctx)
	if err != nil {
		h.logger.Error("ledger EventCount", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	root, err := h.ledger.Root(ctx)
	if err != nil {
		h.logger.Error("ledger Root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger root"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": count, "root": root})
}

// Verify handles GET /ledger/verify — walks the full chain and reports
// integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	if err := h.ledger.VerifyEvents(c.Request.Context()); err != nil {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ListEvents handles GET /ledger/events?after=N&limit=M.
func (h *LedgerHandler) ListEvents(c *gin.Context) {
	after, err := strconv.Atoi(c.DefaultQuery("after", "-1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after must be an integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}

	events, err := h.ledger.Events(c.Request.Context(), after, limit)
	if err != nil {
		h.logger.Error("ledger Events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetEvent handles GET /ledger/events/:seq — returns a single audit event.
func (h *LedgerHandler) GetEvent(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seq must be a non-negative integer"})
		return
	}
	e, err := h.ledger.Event(c.Request.Context(), seq)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
