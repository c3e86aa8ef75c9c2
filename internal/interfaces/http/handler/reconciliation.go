package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/application/matching"
	"github.com/palletledger/backend/internal/application/sweep"
	"github.com/palletledger/backend/internal/infrastructure/feed"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// archiveLinkTTL is how long presigned report links stay valid
const archiveLinkTTL = 15 * time.Minute

// ArchiveLinker presigns downloads of archived sweep reports; storage.S3ReportArchive implements it
type ArchiveLinker interface {
	DownloadURL(ctx context.Context, runID uuid.UUID, expiresIn time.Duration) (string, time.Time, error)
}

// ReconciliationHandler ingests inbound documents, runs sweeps and previews matches
type ReconciliationHandler struct {
	BaseHandler
	ingestor           *feed.Ingestor
	sweeper            *sweep.Sweeper
	engine             *matching.Engine
	archive            ArchiveLinker
	defaultAutoSuggest bool
}

// NewReconciliationHandler creates a new ReconciliationHandler. archive may be nil when
// report archiving is disabled.
func NewReconciliationHandler(ingestor *feed.Ingestor, sweeper *sweep.Sweeper, engine *matching.Engine, archive ArchiveLinker, defaultAutoSuggest bool) *ReconciliationHandler {
	return &ReconciliationHandler{
		ingestor:           ingestor,
		sweeper:            sweeper,
		engine:             engine,
		archive:            archive,
		defaultAutoSuggest: defaultAutoSuggest,
	}
}

// IngestCandidates godoc
//
//	@Summary	Upload inbound documents (CSV export, NF-e XML or ZIP of XML)
//	@Tags		reconciliation
//	@Accept		multipart/form-data
//	@Param		file	formData	file	true	"Inbound document file"
//	@Router		/inbound-candidates/import [post]
func (h *ReconciliationHandler) IngestCandidates(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	res, err := h.ingestor.Ingest(c.Request.Context(), header.Filename, file)
	switch {
	case err == nil:
		h.Success(c, res)
	case errors.Is(err, feed.ErrUnsupportedFile):
		h.Error(c, http.StatusUnsupportedMediaType, dto.ErrCodeUnsupportedFile, err.Error())
	case errors.Is(err, feed.ErrStore):
		h.HandleError(c, err)
	default:
		h.BadRequest(c, err.Error())
	}
}

// RunSweep godoc
//
//	@Summary	Run a reconciliation sweep over a date window
//	@Tags		reconciliation
//	@Success	200	{object}	dto.Response
//	@Failure	422	{object}	dto.Response	"another sweep is running"
//	@Router		/reconciliation/sweeps [post]
func (h *ReconciliationHandler) RunSweep(c *gin.Context) {
	var req dto.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	from, to, autoSuggest, err := req.Window(h.defaultAutoSuggest)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.sweeper.Run(c.Request.Context(), from, to, autoSuggest)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if report.Partial {
		logger.GetGinLogger(c).Warn("Sweep stopped at its time budget", zap.String("run_id", report.RunID.String()))
	}
	h.Success(c, report)
}

// ArchiveLink returns a presigned link to an archived sweep report
//
//	@Tags	reconciliation
//	@Router	/reconciliation/sweeps/{run_id}/archive [get]
func (h *ReconciliationHandler) ArchiveLink(c *gin.Context) {
	runID, ok := h.pathUUID(c, "run_id")
	if !ok {
		return
	}
	if h.archive == nil {
		h.Unavailable(c, "Sweep report archiving is disabled")
		return
	}

	url, expires, err := h.archive.DownloadURL(c.Request.Context(), runID, archiveLinkTTL)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ArchiveURLResponse{RunID: runID, URL: url, ExpiresAt: expires})
}

// PreviewMatch godoc
//
//	@Summary	Score one inbound document against the ledger without writing
//	@Tags		reconciliation
//	@Router		/matching/preview [post]
func (h *ReconciliationHandler) PreviewMatch(c *gin.Context) {
	var req dto.MatchPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	cand, err := req.ToCandidate()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	res, err := h.engine.Match(c.Request.Context(), cand, matching.MatchOptions{DryRun: true})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}
