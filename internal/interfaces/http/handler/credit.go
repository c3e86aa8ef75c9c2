package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
)

// CreditHandler serves pallet credits and their solutions
type CreditHandler struct {
	BaseHandler
	credits *ledger.CreditService
	now     func() time.Time
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(credits *ledger.CreditService) *CreditHandler {
	return &CreditHandler{credits: credits, now: time.Now}
}

// Get godoc
//
//	@Summary	Get a credit with its balances
//	@Tags		credits
//	@Router		/credits/{id} [get]
func (h *CreditHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	cr, err := h.credits.GetCredit(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCreditResponse(cr))
}

// ListPending godoc
//
//	@Summary	List credits with a remaining balance
//	@Tags		credits
//	@Param		counterparty_id		query	string	false	"Counterparty"
//	@Param		counterparty_kind	query	string	false	"CARRIER or CUSTOMER"
//	@Param		overdue_only		query	bool	false	"Only overdue credits"
//	@Param		due_within_days		query	int		false	"Due on or before today plus N days"
//	@Router		/credits [get]
func (h *CreditHandler) ListPending(c *gin.Context) {
	var req dto.CreditListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.credits.ListPending(c.Request.Context(), req.ToFilter(h.now()))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page, dto.ToCreditResponse))
}

// ListSolutions returns what left the credit and what was transferred into it
//
//	@Tags	credits
//	@Router	/credits/{id}/solutions [get]
func (h *CreditHandler) ListSolutions(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	history, err := h.credits.GetSolutionHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSolutionHistoryResponse(history))
}

// ApplySolution godoc
//
//	@Summary	Discharge or transfer part of a credit
//	@Tags		credits
//	@Router		/credits/{id}/solutions [post]
func (h *CreditHandler) ApplySolution(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ApplySolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	in, err := req.ToInput(id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	res, err := h.credits.ApplySolution(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToSolutionResultResponse(res))
}

// Balance godoc
//
//	@Summary	Pallet balance of a counterparty
//	@Tags		credits
//	@Router		/counterparties/{id}/balance [get]
func (h *CreditHandler) Balance(c *gin.Context) {
	summary, err := h.credits.GetBalanceSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
