package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
)

// SettlementHandler decides on registered settlements
type SettlementHandler struct {
	BaseHandler
	settlements *ledger.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(settlements *ledger.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

// Confirm godoc
//
//	@Summary	Confirm a suggested settlement
//	@Tags		settlements
//	@Router		/settlements/{id}/confirm [post]
func (h *SettlementHandler) Confirm(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	settlement, err := h.settlements.Confirm(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSettlementResponse(settlement))
}

// Reject godoc
//
//	@Summary	Reject a suggested settlement
//	@Tags		settlements
//	@Router		/settlements/{id}/reject [post]
func (h *SettlementHandler) Reject(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	settlement, err := h.settlements.Reject(c.Request.Context(), id, req.Reason, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSettlementResponse(settlement))
}
