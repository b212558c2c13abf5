package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemolabs/mnemo/internal/advisory"
	"github.com/mnemolabs/mnemo/internal/api/handlers"
	mw "github.com/mnemolabs/mnemo/internal/api/middleware"
	"github.com/mnemolabs/mnemo/internal/buildconfig"
	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/drift"
	"github.com/mnemolabs/mnemo/internal/embedding"
	"github.com/mnemolabs/mnemo/internal/extract"
	"github.com/mnemolabs/mnemo/internal/service"
	"github.com/mnemolabs/mnemo/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Decay        *service.DecayService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	memoryStore := store.NewMemoryStore(db)
	ledgerStore := store.NewLedgerStore(db)
	historyStore := store.NewTrustHistoryStore(db)

	// External clients via provider factory
	var embeddingClient domain.EmbeddingClient
	var advisoryClient domain.AdvisoryClient

	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed, semantic drift tier disabled",
			zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
		embeddingClient = nil
	} else {
		logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))
	}

	advisoryClient, err = advisory.NewClient(config.AdvisoryProvider(), config.AdvisoryURL(), config.AdvisoryTimeout())
	if err != nil {
		logger.Warn("advisory client initialization failed, running pure deterministic policy",
			zap.String("provider", config.AdvisoryProvider()), zap.Error(err))
		advisoryClient = advisory.NewNoopClient()
	} else {
		logger.Info("advisory client initialized", zap.String("provider", config.AdvisoryProvider()))
	}

	// Engine configuration, built once and injected.
	slotCfg := config.DefaultSlotConfig()
	trustCfg := config.DefaultTrustConfig()
	classifierCfg := config.DefaultClassifierConfig()
	policyCfg := config.PolicyConfigFromEnv()
	gateCfg := config.GateConfigFromEnv()

	// Services
	extractor := extract.NewExtractor(logger)
	driftEngine := drift.NewEngine(embeddingClient, config.EmbeddingTimeout(), logger)
	classifier := service.NewClassifier(driftEngine, advisoryClient, classifierCfg, slotCfg, logger)
	trustScorer := service.NewTrustScorer(memoryStore, historyStore, trustCfg, slotCfg, logger)
	policyEngine := service.NewPolicyEngine(advisoryClient, policyCfg, logger)
	engineSvc := service.NewEngineService(memoryStore, ledgerStore, historyStore, extractor, classifier, trustScorer, policyEngine, embeddingClient, logger)
	gateSvc := service.NewGateService(memoryStore, ledgerStore, extractor, gateCfg, logger)
	decaySvc := service.NewDecayService(memoryStore, trustScorer, logger)
	decaySvc.SetInterval(config.DecayInterval())

	// Handlers
	statementHandler := handlers.NewStatementHandler(engineSvc)
	slotHandler := handlers.NewSlotHandler(gateSvc, engineSvc)
	contradictionHandler := handlers.NewContradictionHandler(engineSvc)
	memoryHandler := handlers.NewMemoryHandler(engineSvc)
	maintenanceHandler := handlers.NewMaintenanceHandler(decaySvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Decay:     decaySvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Post("/statements", statementHandler.Submit)

		r.Route("/threads/{threadID}", func(r chi.Router) {
			r.Get("/answers", slotHandler.Ask)
			r.Route("/slots/{slot}", func(r chi.Router) {
				r.Get("/", slotHandler.Query)
				r.Get("/history", slotHandler.History)
			})
			r.Route("/contradictions", func(r chi.Router) {
				r.Get("/", contradictionHandler.ListOpen)
				r.Get("/report", contradictionHandler.Report)
			})
		})

		r.Post("/contradictions/{id}/resolve", contradictionHandler.Resolve)

		r.Route("/memories/{id}", func(r chi.Router) {
			r.Get("/trust", memoryHandler.TrustHistory)
			r.Delete("/", memoryHandler.Deprecate)
		})

		r.Post("/maintenance/decay", maintenanceHandler.TriggerDecay)
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage lifecycle
// themselves.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.MemoryStore       = (*store.MemoryStore)(nil)
	_ domain.LedgerStore       = (*store.LedgerStore)(nil)
	_ domain.TrustHistoryStore = (*store.TrustHistoryStore)(nil)
	_ domain.EmbeddingClient   = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient   = (*embedding.MockClient)(nil)
	_ domain.AdvisoryClient    = (*advisory.HTTPClient)(nil)
	_ domain.AdvisoryClient    = (*advisory.NoopClient)(nil)
	_ domain.AdvisoryClient    = (*advisory.MockClient)(nil)
)
