package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/application/ledger"
	csvimport "github.com/palletledger/backend/internal/infrastructure/import"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
)

// maxImportErrors caps the row errors reported for one uploaded file
const maxImportErrors = 200

// OutboundDocumentHandler serves outbound documents and their settlements
type OutboundDocumentHandler struct {
	BaseHandler
	documents   *ledger.DocumentService
	settlements *ledger.SettlementService
}

// NewOutboundDocumentHandler creates a new OutboundDocumentHandler
func NewOutboundDocumentHandler(documents *ledger.DocumentService, settlements *ledger.SettlementService) *OutboundDocumentHandler {
	return &OutboundDocumentHandler{documents: documents, settlements: settlements}
}

// Import godoc
//
//	@Summary	Import one outbound document and open its credit
//	@Tags		outbound-documents
//	@Success	201	{object}	dto.Response
//	@Success	200	{object}	dto.Response	"already imported"
//	@Router		/outbound-documents [post]
func (h *OutboundDocumentHandler) Import(c *gin.Context) {
	var req dto.ImportOutboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	in, err := req.ToInput(actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	res, err := h.documents.ImportOutbound(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if res.Duplicate {
		h.Success(c, dto.ToImportOutboundResponse(res))
		return
	}
	h.Created(c, dto.ToImportOutboundResponse(res))
}

// ImportFile godoc
//
//	@Summary	Import outbound documents from a CSV export
//	@Tags		outbound-documents
//	@Accept		multipart/form-data
//	@Param		file	formData	file	true	"CSV export"
//	@Router		/outbound-documents/import [post]
func (h *OutboundDocumentHandler) ImportFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		h.Error(c, http.StatusUnsupportedMediaType, dto.ErrCodeUnsupportedFile, "file must be a CSV export")
		return
	}

	parsed, err := csvimport.ParseOutboundDocuments(file, actor(c), maxImportErrors)
	if err != nil {
		var missing *csvimport.MissingColumnsError
		switch {
		case errors.As(err, &missing), errors.Is(err, csvimport.ErrEmptyFile), errors.Is(err, csvimport.ErrMissingHeader):
			h.BadRequest(c, err.Error())
		default:
			h.HandleError(c, err)
		}
		return
	}

	res := h.documents.ImportOutboundBatch(c.Request.Context(), parsed.Inputs())
	h.Success(c, dto.ToOutboundFileImportResponse(parsed, res))
}

// Get godoc
//
//	@Summary	Get an outbound document
//	@Tags		outbound-documents
//	@Router		/outbound-documents/{id} [get]
func (h *OutboundDocumentHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	doc, err := h.documents.GetOutbound(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOutboundDocumentResponse(doc))
}

// Lookup finds documents by number and series or by fiscal key
//
//	@Summary	Find outbound documents
//	@Tags		outbound-documents
//	@Param		number		query	string	false	"Document number"
//	@Param		series		query	string	false	"Series"
//	@Param		fiscal_key	query	string	false	"44-digit access key"
//	@Router		/outbound-documents [get]
func (h *OutboundDocumentHandler) Lookup(c *gin.Context) {
	var req dto.OutboundLookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.FiscalKey != "":
		doc, err := h.documents.GetOutboundByFiscalKey(ctx, req.FiscalKey)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, []dto.OutboundDocumentResponse{dto.ToOutboundDocumentResponse(doc)})
	case req.Number != "":
		docs, err := h.documents.GetOutboundByNumber(ctx, req.Number, req.Series)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.ToOutboundDocumentResponses(docs))
	default:
		h.BadRequest(c, "number or fiscal_key is required")
	}
}

// Cancel godoc
//
//	@Summary	Cancel an outbound document
//	@Tags		outbound-documents
//	@Router		/outbound-documents/{id}/cancel [post]
func (h *OutboundDocumentHandler) Cancel(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	doc, err := h.documents.Cancel(c.Request.Context(), id, req.Reason, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOutboundDocumentResponse(doc))
}

// Recompute re-derives the document status from its confirmed settlements
//
//	@Tags	outbound-documents
//	@Router	/outbound-documents/{id}/recompute [post]
func (h *OutboundDocumentHandler) Recompute(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	doc, err := h.documents.RecomputeStatus(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOutboundDocumentResponse(doc))
}

// ListSettlements returns every settlement of a document, newest first
//
//	@Tags	outbound-documents
//	@Router	/outbound-documents/{id}/settlements [get]
func (h *OutboundDocumentHandler) ListSettlements(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	history, err := h.documents.GetSettlementHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSettlementResponses(history))
}

// RegisterSettlement godoc
//
//	@Summary	Register a settlement against a document
//	@Tags		outbound-documents
//	@Router		/outbound-documents/{id}/settlements [post]
func (h *OutboundDocumentHandler) RegisterSettlement(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RegisterSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	in, err := req.ToInput(id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	settlement, err := h.settlements.RegisterSettlement(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToSettlementResponse(settlement))
}

// PendingSuggestions lists documents holding suggestions that await confirmation
//
//	@Tags	outbound-documents
//	@Router	/outbound-documents/pending-suggestions [get]
func (h *OutboundDocumentHandler) PendingSuggestions(c *gin.Context) {
	items, err := h.documents.ListPendingSuggestions(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToPendingSuggestionsResponses(items))
}
