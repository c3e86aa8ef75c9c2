package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/infrastructure/config"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"github.com/palletledger/backend/internal/interfaces/http/handler"
	"github.com/palletledger/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers of the ledger API
type Handlers struct {
	Documents      *handler.OutboundDocumentHandler
	Settlements    *handler.SettlementHandler
	Credits        *handler.CreditHandler
	Reconciliation *handler.ReconciliationHandler
	Audit          *handler.AuditHandler
	System         *handler.SystemHandler
}

// EngineConfig carries everything NewEngine needs besides the handlers
type EngineConfig struct {
	Logger  *zap.Logger
	HTTP    config.HTTPConfig
	Actor   middleware.ActorConfig
	Tracing middleware.TracingConfig
	// Metrics enables request metrics and GET /metrics; nil disables both
	Metrics *telemetry.Metrics
	// WriteLimiter throttles imports and sweeps per actor; nil disables throttling
	WriteLimiter *middleware.RateLimiter
}

// NewEngine builds the gin engine with the full middleware chain and every route.
//
// Engine-level middleware, in order:
//  1. RequestID
//  2. Recovery
//  3. request logger
//  4. security headers, CORS, body limit
//  5. tracing and request metrics
//
// The versioned API group adds actor resolution; imports and sweeps are rate limited.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(middleware.SpanErrorMarker())
	if cfg.Metrics != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Metrics))
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	actorCfg := cfg.Actor
	if actorCfg.Logger == nil {
		actorCfg.Logger = log
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.Actor(actorCfg), middleware.SpanEnricher())

	var throttle []gin.HandlerFunc
	if cfg.WriteLimiter != nil {
		throttle = append(throttle, middleware.RateLimit(cfg.WriteLimiter))
	}
	for _, g := range LedgerRoutes(h, throttle...) {
		r.Register(g)
		log.Debug("Registered route group", zap.String("group", g.Name()), zap.Int("routes", g.RouteCount()))
	}
	r.Setup()

	return engine
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	cors.MaxAge = 12 * time.Hour
	return cors
}

// LedgerRoutes returns the route groups of the ledger API. throttle wraps the
// expensive endpoints: file imports and sweeps.
func LedgerRoutes(h Handlers, throttle ...gin.HandlerFunc) []*DomainGroup {
	heavy := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, throttle...), fn)
	}

	var groups []*DomainGroup

	if d := h.Documents; d != nil {
		docs := NewDomainGroup("outbound-documents", "/outbound-documents")
		docs.POST("", d.Import).
			POST("/import", heavy(d.ImportFile)...).
			GET("", d.Lookup).
			GET("/pending-suggestions", d.PendingSuggestions).
			GET("/:id", d.Get).
			POST("/:id/cancel", d.Cancel).
			POST("/:id/recompute", d.Recompute).
			GET("/:id/settlements", d.ListSettlements).
			POST("/:id/settlements", d.RegisterSettlement)
		groups = append(groups, docs)
	}

	if s := h.Settlements; s != nil {
		settlements := NewDomainGroup("settlements", "/settlements")
		settlements.POST("/:id/confirm", s.Confirm).
			POST("/:id/reject", s.Reject)
		groups = append(groups, settlements)
	}

	if c := h.Credits; c != nil {
		credits := NewDomainGroup("credits", "/credits")
		credits.GET("", c.ListPending).
			GET("/:id", c.Get).
			GET("/:id/solutions", c.ListSolutions).
			POST("/:id/solutions", c.ApplySolution)
		counterparties := NewDomainGroup("counterparties", "/counterparties")
		counterparties.GET("/:id/balance", c.Balance)
		groups = append(groups, credits, counterparties)
	}

	if rec := h.Reconciliation; rec != nil {
		inbound := NewDomainGroup("inbound-candidates", "/inbound-candidates")
		inbound.POST("/import", heavy(rec.IngestCandidates)...)

		reconciliation := NewDomainGroup("reconciliation", "/reconciliation")
		reconciliation.POST("/sweeps", heavy(rec.RunSweep)...).
			GET("/sweeps/:run_id/archive", rec.ArchiveLink)

		matching := NewDomainGroup("matching", "/matching")
		matching.POST("/preview", rec.PreviewMatch)
		groups = append(groups, inbound, reconciliation, matching)
	}

	if a := h.Audit; a != nil {
		groups = append(groups, NewDomainGroup("audit", "/audit").GET("", a.List))
	}

	if s := h.System; s != nil {
		groups = append(groups, NewDomainGroup("system", "/system").GET("/info", s.Info))
	}

	return groups
}
