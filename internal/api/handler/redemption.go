package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equigive/equigive/internal/ledger"
)

// RedemptionHandler is the spend-verification endpoint: once a farmer's
// proof of spend is approved, the authenticated burner permanently retires
// the corresponding units from the farmer's account.
type RedemptionHandler struct {
	ledger ledger.Ledger
	logger *zap.Logger
}

// NewRedemptionHandler creates a new RedemptionHandler.
func NewRedemptionHandler(lg ledger.Ledger, logger *zap.Logger) *RedemptionHandler {
	return &RedemptionHandler{ledger: lg, logger: logger}
}

// Register mounts the redemption routes on the given router group.
func (h *RedemptionHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/redemptions", h.Record)
}

type redemptionRequest struct {
	Account string `json:"account" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
	Ref     string `json:"ref"` // receipt / approval reference, audit only
}

// Record handles POST /redemptions.
func (h *RedemptionHandler) Record(c *gin.Context) {
	var req redemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account and amount are required"})
		return
	}
	amount := parseAmount(c, req.Amount)
	if amount == nil {
		return
	}

	ctx := c.Request.Context()
	caller := callerFrom(c)
	if err := h.ledger.Burn(ctx, caller, ledger.Address(req.Account), amount, req.Ref); err != nil {
		writeCoreError(c, err)
		return
	}
	unitsBurned.Add(amountMetric(amount))
	h.logger.Info("redemption recorded",
		zap.String("account", req.Account),
		zap.String("amount", amount.String()),
		zap.String("ref", req.Ref),
	)

	bal, err := h.ledger.BalanceOf(ctx, ledger.Address(req.Account))
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account": req.Account,
		"burned":  amount.String(),
		"balance": bal.String(),
	})
}
