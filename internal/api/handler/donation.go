package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equigive/equigive/internal/custody"
	"github.com/equigive/equigive/internal/ledger"
)

// DonationHandler is the donation-intake glue: it resolves a farm to its
// vault and mints the donated units into the vault account as the
// authenticated minter.
type DonationHandler struct {
	registry custody.Registry
	ledger   ledger.Ledger
	logger   *zap.Logger
}

// NewDonationHandler creates a new DonationHandler.
func NewDonationHandler(registry custody.Registry, lg ledger.Ledger, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{registry: registry, ledger: lg, logger: logger}
}

// Register mounts the donation routes on the given router group.
func (h *DonationHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/donations", h.Record)
}

type donationRequest struct {
	FarmID   string `json:"farm_id" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	DonorRef string `json:"donor_ref"`
}

// Record handles POST /donations — mints amount units into the farm's vault.
// The donor reference travels only into the Minted event payload for audit;
// it plays no part in the balance model.
func (h *DonationHandler) Record(c *gin.Context) {
	var req donationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "farm_id and amount are required"})
		return
	}
	amount := parseAmount(c, req.Amount)
	if amount == nil {
		return
	}

	ctx := c.Request.Context()
	v, err := h.registry.VaultOf(ctx, req.FarmID)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	caller := callerFrom(c)
	if err := h.ledger.Mint(ctx, caller, v.Account, amount, req.DonorRef); err != nil {
		writeCoreError(c, err)
		return
	}
	unitsMinted.Add(amountMetric(amount))
	h.logger.Info("donation recorded",
		zap.String("farm_id", req.FarmID),
		zap.String("amount", amount.String()),
		zap.String("donor_ref", req.DonorRef),
	)

	bal, err := v.Balance(ctx)
	if err != nil {
		h.logger.Error("vault balance after donation", zap.String("farm_id", req.FarmID), zap.Error(err))
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"farm_id": v.FarmID,
		"account": v.Account,
		"minted":  amount.String(),
		"balance": bal.String(),
	})
}
