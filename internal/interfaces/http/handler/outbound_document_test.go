package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundDocumentHandler_Import(t *testing.T) {
	s := newTestServer(t)

	first := s.importDocument(t, "100", 20, "2024-03-01")
	assert.False(t, first.Duplicate)
	assert.Equal(t, "ACTIVE", first.Document.Status)
	assert.Equal(t, 20, first.Document.PendingQuantity)
	assert.Equal(t, testActor, first.Document.CreatedBy)
	require.NotNil(t, first.Credit)
	assert.Equal(t, 20, first.Credit.RemainingBalance)
	assert.Equal(t, "OPEN", first.Credit.Status)

	t.Run("same natural key is reported as duplicate", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/outbound-documents", map[string]any{
			"document_number":   "100",
			"series":            "1",
			"emission_date":     "2024-03-01",
			"issuing_entity":    "DISTRIBUTION",
			"counterparty_kind": "CUSTOMER",
			"counterparty_id":   customerX,
			"quantity":          20,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var again dto.ImportOutboundResponse
		decodeData(t, w, &again)
		assert.True(t, again.Duplicate)
		assert.Equal(t, first.Document.ID, again.Document.ID)
	})

	t.Run("binding errors list fields", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/outbound-documents", map[string]any{
			"document_number":   "101",
			"issuing_entity":    "BRANCH",
			"counterparty_kind": "CUSTOMER",
			"counterparty_id":   customerX,
			"quantity":          5,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, "VALIDATION_ERROR", info.Code)
		fields := map[string]bool{}
		for _, d := range info.Details {
			fields[d.Field] = true
		}
		assert.True(t, fields["emission_date"])
		assert.True(t, fields["issuing_entity"])
	})

	t.Run("unparseable date", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/outbound-documents", map[string]any{
			"document_number":   "102",
			"emission_date":     "yesterday",
			"issuing_entity":    "DISTRIBUTION",
			"counterparty_kind": "CUSTOMER",
			"counterparty_id":   customerX,
			"quantity":          5,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/outbound-documents", map[string]any{"quantity": "many"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, w).Code)
	})
}

func TestOutboundDocumentHandler_ImportFile(t *testing.T) {
	s := newTestServer(t)
	s.importDocument(t, "100", 20, "2024-03-01")

	csv := "document_number,series,emission_date,issuing_entity,counterparty_kind,counterparty_id,quantity\n" +
		"100,1,2024-03-01,DISTRIBUTION,CUSTOMER," + customerX + ",20\n" +
		"200,1,2024-03-02,DISTRIBUTION,CUSTOMER," + customerX + ",12\n" +
		"201,1,not-a-date,DISTRIBUTION,CUSTOMER," + customerX + ",3\n" +
		"202,1,2024-03-02,LOGISTICS,CARRIER,carrier-9,8\n"

	w := s.upload(t, "/api/v1/outbound-documents/import", "outbound.csv", []byte(csv))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res dto.OutboundFileImportResponse
	decodeData(t, w, &res)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, res.ParseErrorCount)
	require.Len(t, res.ParseErrors, 1)
	assert.Equal(t, "emission_date", res.ParseErrors[0].Column)

	t.Run("rejects non csv uploads", func(t *testing.T) {
		w := s.upload(t, "/api/v1/outbound-documents/import", "outbound.xlsx", []byte("binary"))
		require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Equal(t, dto.ErrCodeUnsupportedFile, decodeError(t, w).Code)
	})

	t.Run("missing columns fail the file", func(t *testing.T) {
		w := s.upload(t, "/api/v1/outbound-documents/import", "outbound.csv", []byte("document_number\n1\n"))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Message, "quantity")
	})
}

func TestOutboundDocumentHandler_GetAndLookup(t *testing.T) {
	s := newTestServer(t)
	imported := s.importDocument(t, "300", 10, "2024-03-05")

	w := s.do(t, http.MethodGet, "/api/v1/outbound-documents/"+imported.Document.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc dto.OutboundDocumentResponse
	decodeData(t, w, &doc)
	assert.Equal(t, "300", doc.DocumentNumber)

	w = s.do(t, http.MethodGet, "/api/v1/outbound-documents?number=300&series=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var docs []dto.OutboundDocumentResponse
	decodeData(t, w, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, imported.Document.ID, docs[0].ID)

	t.Run("unknown id", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/outbound-documents/"+uuid.NewString(), nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/outbound-documents/abc", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decodeError(t, w).Code)
	})

	t.Run("lookup needs a key", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/outbound-documents", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOutboundDocumentHandler_Cancel(t *testing.T) {
	s := newTestServer(t)
	imported := s.importDocument(t, "400", 10, "2024-03-05")
	path := "/api/v1/outbound-documents/" + imported.Document.ID.String()

	w := s.do(t, http.MethodPost, path+"/cancel", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, path+"/cancel", map[string]any{"reason": "issued in error"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc dto.OutboundDocumentResponse
	decodeData(t, w, &doc)
	assert.Equal(t, "CANCELLED", doc.Status)
	assert.Equal(t, "issued in error", doc.CancelReason)
	assert.Equal(t, testActor, doc.CancelledBy)

	t.Run("cancelled documents refuse settlements", func(t *testing.T) {
		w := s.do(t, http.MethodPost, path+"/settlements", map[string]any{"kind": "REFUSAL", "quantity": 2})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	})
}

func TestOutboundDocumentHandler_Settlements(t *testing.T) {
	s := newTestServer(t)
	imported := s.importDocument(t, "500", 10, "2024-03-05")
	path := "/api/v1/outbound-documents/" + imported.Document.ID.String()

	w := s.do(t, http.MethodPost, path+"/settlements", map[string]any{
		"kind":     "RETURN",
		"quantity": 4,
		"document": map[string]any{"number": "9001", "issuer_cnpj": "11.111.111/0001-11", "date": "2024-03-07"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var manual dto.SettlementResponse
	decodeData(t, w, &manual)
	assert.Equal(t, "MANUAL", manual.LinkageMode)
	assert.True(t, manual.Confirmed)
	require.NotNil(t, manual.Document)
	assert.Equal(t, "11111111000111", manual.Document.IssuerCNPJ)

	t.Run("same return document twice is a conflict", func(t *testing.T) {
		w := s.do(t, http.MethodPost, path+"/settlements", map[string]any{
			"kind":     "RETURN",
			"quantity": 1,
			"document": map[string]any{"number": "9001", "issuer_cnpj": "11111111000111"},
		})
		require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	})

	t.Run("quantity above pending", func(t *testing.T) {
		w := s.do(t, http.MethodPost, path+"/settlements", map[string]any{"kind": "REFUSAL", "quantity": 7})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, "QUANTITY_EXCEEDS_AVAILABLE", decodeError(t, w).Code)
	})

	w = s.do(t, http.MethodPost, path+"/settlements", map[string]any{
		"kind":         "RETURN",
		"quantity":     6,
		"linkage_mode": "SUGGESTED",
		"match_score":  72,
		"document":     map[string]any{"number": "9002", "issuer_cnpj": "11111111000111"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var suggested dto.SettlementResponse
	decodeData(t, w, &suggested)
	assert.False(t, suggested.Confirmed)

	w = s.do(t, http.MethodGet, "/api/v1/outbound-documents/pending-suggestions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []dto.PendingSuggestionsResponse
	decodeData(t, w, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, 4, pending[0].Document.ResolvedQuantity)
	require.Len(t, pending[0].Suggestions, 1)
	assert.Equal(t, suggested.ID, pending[0].Suggestions[0].ID)

	w = s.do(t, http.MethodPost, "/api/v1/settlements/"+suggested.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, path, nil)
	var doc dto.OutboundDocumentResponse
	decodeData(t, w, &doc)
	assert.Equal(t, "SETTLED", doc.Status)
	assert.Equal(t, 0, doc.PendingQuantity)

	w = s.do(t, http.MethodGet, path+"/settlements", nil)
	var history []dto.SettlementResponse
	decodeData(t, w, &history)
	assert.Len(t, history, 2)

	w = s.do(t, http.MethodPost, path+"/recompute", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &doc)
	assert.Equal(t, 10, doc.ResolvedQuantity)
}

func TestSettlementHandler_Reject(t *testing.T) {
	s := newTestServer(t)
	imported := s.importDocument(t, "600", 10, "2024-03-05")

	w := s.do(t, http.MethodPost, "/api/v1/outbound-documents/"+imported.Document.ID.String()+"/settlements", map[string]any{
		"kind":         "RETURN",
		"quantity":     3,
		"linkage_mode": "SUGGESTED",
		"match_score":  55,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var suggested dto.SettlementResponse
	decodeData(t, w, &suggested)
	path := "/api/v1/settlements/" + suggested.ID.String()

	w = s.do(t, http.MethodPost, path+"/reject", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, path+"/reject", map[string]any{"reason": "different customer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rejected dto.SettlementResponse
	decodeData(t, w, &rejected)
	assert.True(t, rejected.Rejected)
	assert.Equal(t, testActor, rejected.RejectedBy)

	t.Run("rejected suggestions cannot be confirmed", func(t *testing.T) {
		w := s.do(t, http.MethodPost, path+"/confirm", nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, "INVALID_STATE", decodeError(t, w).Code)
	})

	t.Run("unknown settlement", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/settlements/"+uuid.NewString()+"/confirm", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
