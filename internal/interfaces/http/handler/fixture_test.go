package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/application/matching"
	"github.com/palletledger/backend/internal/application/sweep"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/infrastructure/feed"
	"github.com/palletledger/backend/internal/infrastructure/persistence"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
	"github.com/palletledger/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testActor   = "analyst@example.com"
	customerX   = "11111111000111"
	carrierCNPJ = "22.222.222/0001-22"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	repos    ledger.Repositories
	archive  *fakeArchive
	handlers struct {
		documents      *OutboundDocumentHandler
		settlements    *SettlementHandler
		credits        *CreditHandler
		reconciliation *ReconciliationHandler
		audit          *AuditHandler
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), persistence.GormConfig())
	require.NoError(t, err)

	// each pooled connection would otherwise get its own empty in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, persistence.AutoMigrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	db := newTestDB(t)
	scope := persistence.NewGormTransactionScope(db)
	repos := persistence.NewLedgerRepositories(db)
	rule := credit.DefaultDueDateRule("SP")

	documents := ledger.NewDocumentService(scope, repos, rule, log)
	credits := ledger.NewCreditService(scope, repos, rule, log)
	settlements := ledger.NewSettlementService(scope, repos, log)
	engine := matching.NewEngine(repos.Documents, repos.Settlements, settlements, log)
	candidates := persistence.NewGormInboundCandidateRepository(db)
	sweeper := sweep.NewSweeper(candidates, engine, sweep.DefaultConfig(), log)

	s := &testServer{db: db, repos: repos, archive: &fakeArchive{}}
	s.handlers.documents = NewOutboundDocumentHandler(documents, settlements)
	s.handlers.settlements = NewSettlementHandler(settlements)
	s.handlers.credits = NewCreditHandler(credits)
	s.handlers.reconciliation = NewReconciliationHandler(feed.NewIngestor(candidates, log), sweeper, engine, s.archive, true)
	s.handlers.audit = NewAuditHandler(ledger.NewAuditService(repos.Audit))

	actorCfg := middleware.DefaultActorConfig(nil)
	actorCfg.AllowHeaderFallback = true

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Actor(actorCfg))
	api := r.Group("/api/v1")

	d := s.handlers.documents
	api.POST("/outbound-documents", d.Import)
	api.POST("/outbound-documents/import", d.ImportFile)
	api.GET("/outbound-documents", d.Lookup)
	api.GET("/outbound-documents/pending-suggestions", d.PendingSuggestions)
	api.GET("/outbound-documents/:id", d.Get)
	api.POST("/outbound-documents/:id/cancel", d.Cancel)
	api.POST("/outbound-documents/:id/recompute", d.Recompute)
	api.GET("/outbound-documents/:id/settlements", d.ListSettlements)
	api.POST("/outbound-documents/:id/settlements", d.RegisterSettlement)

	api.POST("/settlements/:id/confirm", s.handlers.settlements.Confirm)
	api.POST("/settlements/:id/reject", s.handlers.settlements.Reject)

	c := s.handlers.credits
	api.GET("/credits", c.ListPending)
	api.GET("/credits/:id", c.Get)
	api.GET("/credits/:id/solutions", c.ListSolutions)
	api.POST("/credits/:id/solutions", c.ApplySolution)
	api.GET("/counterparties/:id/balance", c.Balance)

	rec := s.handlers.reconciliation
	api.POST("/inbound-candidates/import", rec.IngestCandidates)
	api.POST("/reconciliation/sweeps", rec.RunSweep)
	api.GET("/reconciliation/sweeps/:run_id/archive", rec.ArchiveLink)
	api.POST("/matching/preview", rec.PreviewMatch)

	api.GET("/audit", s.handlers.audit.List)

	s.engine = r
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, testActor)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.ActorHeader, testActor)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// importDocument posts one outbound document and returns the decoded response
func (s *testServer) importDocument(t *testing.T, number string, qty int, emitted string) dto.ImportOutboundResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/outbound-documents", map[string]any{
		"document_number":   number,
		"series":            "1",
		"emission_date":     emitted,
		"issuing_entity":    "DISTRIBUTION",
		"counterparty_kind": "CUSTOMER",
		"counterparty_id":   customerX,
		"counterparty_name": "Mercado Central",
		"region":            "SP",
		"quantity":          qty,
		"unit_value":        "30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out dto.ImportOutboundResponse
	decodeData(t, w, &out)
	return out
}

// decodeData unmarshals the data member of a success envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// decodeError returns the error member of a failed envelope
func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return *resp.Error
}
