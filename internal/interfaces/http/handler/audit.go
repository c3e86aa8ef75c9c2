package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
)

// AuditHandler exposes the ledger's audit trail
type AuditHandler struct {
	BaseHandler
	audit *ledger.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *ledger.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
//
//	@Summary	Query the audit trail
//	@Tags		audit
//	@Param		entity_id	query	string	false	"Credit, document or settlement id"	format(uuid)
//	@Param		action		query	string	false	"Action name"
//	@Param		outcome		query	string	false	"SUCCESS or FAILURE"
//	@Router		/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	var req dto.AuditRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, err := h.audit.Find(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page, dto.ToAuditEntryResponse))
}
