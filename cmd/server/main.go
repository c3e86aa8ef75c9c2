package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/bootstrap"
	"github.com/palletledger/backend/internal/infrastructure/auth"
	"github.com/palletledger/backend/internal/infrastructure/config"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/infrastructure/scheduler"
	"github.com/palletledger/backend/internal/interfaces/http/handler"
	"github.com/palletledger/backend/internal/interfaces/http/middleware"
	"github.com/palletledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

//	@title			Pallet Deposit Ledger API
//	@version		1.0
//	@description	Pallet credit ledger, outbound document ledger and inbound reconciliation.
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting pallet ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	ctx := context.Background()
	c, err := bootstrap.New(ctx, cfg, log, bootstrap.WithVersion(Version))
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()

	// Daily sweep over the trailing window
	if cfg.Scheduler.Enabled {
		trigger, err := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			DailyHour:     cfg.Scheduler.DailyHour,
			DailyMinute:   cfg.Scheduler.DailyMinute,
			CheckInterval: cfg.Scheduler.CheckInterval,
			LookbackDays:  cfg.Sweep.LookbackDays,
			AutoSuggest:   cfg.Sweep.AutoSuggest,
		}, c.Sweeper, log)
		if err != nil {
			log.Fatal("Invalid scheduler configuration", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sweep trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping sweep trigger", zap.Error(err))
			}
		}()
		log.Info("Sweep trigger started",
			zap.Int("daily_hour", cfg.Scheduler.DailyHour),
			zap.Int("daily_minute", cfg.Scheduler.DailyMinute),
			zap.Int("lookback_days", cfg.Sweep.LookbackDays),
		)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	writeLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	defer writeLimiter.Stop()

	actorCfg := middleware.DefaultActorConfig(auth.NewJWTService(cfg.JWT))
	actorCfg.AllowHeaderFallback = !cfg.IsProduction()

	// archive stays a nil interface when archiving is disabled
	var archive handler.ArchiveLinker
	if c.Archive != nil {
		archive = c.Archive
	}

	engine := router.NewEngine(router.EngineConfig{
		Logger: log,
		HTTP:   cfg.HTTP,
		Actor:  actorCfg,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics:      c.Metrics,
		WriteLimiter: writeLimiter,
	}, router.Handlers{
		Documents:      handler.NewOutboundDocumentHandler(c.Documents, c.Settlements),
		Settlements:    handler.NewSettlementHandler(c.Settlements),
		Credits:        handler.NewCreditHandler(c.Credits),
		Reconciliation: handler.NewReconciliationHandler(c.Ingestor, c.Sweeper, c.Engine, archive, cfg.Sweep.AutoSuggest),
		Audit:          handler.NewAuditHandler(c.Audit),
		System:         handler.NewSystemHandler(cfg.App.Name, Version, c.DB),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// a running sweep may need its whole time budget to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Sweep.TimeBudget+30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
