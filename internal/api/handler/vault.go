package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equigive/equigive/internal/custody"
	"github.com/equigive/equigive/internal/ledger"
)

// VaultHandler exposes farm onboarding, vault lookup, and release.
type VaultHandler struct {
	registry custody.Registry
	logger   *zap.Logger
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(registry custody.Registry, logger *zap.Logger) *VaultHandler {
	return &VaultHandler{registry: registry, logger: logger}
}

// Register mounts the vault routes on the given router group.
func (h *VaultHandler) Register(rg *gin.RouterGroup) {
	farms := rg.Group("/farms")
	{
		farms.PUT("/:farm_id/vault", h.Create)
		farms.GET("/:farm_id/vault", h.Get)
		farms.POST("/:farm_id/release", h.Release)
	}
}

type createVaultRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

// Create handles PUT /farms/:farm_id/vault — operator-only farm onboarding.
// Idempotent: re-creating an onboarded farm returns the existing vault with
// its original recipient, and reports created=false.
func (h *VaultHandler) Create(c *gin.Context) {
	var req createVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient is required"})
		return
	}

	farmID := c.Param("farm_id")
	v, err := h.registry.CreateVault(c.Request.Context(), callerFrom(c), farmID, ledger.Address(req.Recipient))
	created := err == nil
	if err != nil && !errors.Is(err, custody.ErrAlreadyExists) {
		h.logger.Error("create vault", zap.String("farm_id", farmID), zap.Error(err))
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"farm_id":   v.FarmID,
		"account":   v.Account,
		"recipient": v.Recipient,
		"created":   created,
	})
}

// Get handles GET /farms/:farm_id/vault — vault info plus escrow balance.
func (h *VaultHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	farmID := c.Param("farm_id")

	v, err := h.registry.VaultOf(ctx, farmID)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	bal, err := v.Balance(ctx)
	if err != nil {
		h.logger.Error("vault balance", zap.String("farm_id", farmID), zap.Error(err))
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"farm_id":   v.FarmID,
		"account":   v.Account,
		"recipient": v.Recipient,
		"balance":   bal.String(),
	})
}

type releaseRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// Release handles POST /farms/:farm_id/release — the authenticated farmer
// sweeps amount units out of escrow into their own account.
func (h *VaultHandler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	amount := parseAmount(c, req.Amount)
	if amount == nil {
		return
	}

	ctx := c.Request.Context()
	farmID := c.Param("farm_id")
	v, err := h.registry.VaultOf(ctx, farmID)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	if err := v.Release(ctx, callerFrom(c), amount); err != nil {
		writeCoreError(c, err)
		return
	}
	unitsReleased.Add(amountMetric(amount))

	bal, err := v.Balance(ctx)
	if err != nil {
		h.logger.Error("vault balance after release", zap.String("farm_id", farmID), zap.Error(err))
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"farm_id":   v.FarmID,
		"recipient": v.Recipient,
		"released":  amount.String(),
		"balance":   bal.String(),
	})
}
