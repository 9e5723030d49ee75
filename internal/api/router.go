package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/cubomagico/memoria/internal/api/handlers"
	mw "github.com/cubomagico/memoria/internal/api/middleware"
	"github.com/cubomagico/memoria/internal/buildconfig"
	"github.com/cubomagico/memoria/internal/config"
	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/lock"
	"github.com/cubomagico/memoria/internal/service"
	"github.com/cubomagico/memoria/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer routes to.
type Deps struct {
	DB       Pinger
	Tenants  domain.TenantStore
	Signals  handlers.SignalService
	Memories handlers.MemoryCurator
	Profiles handlers.ProfileBuilder
}

// App holds the router and the services the server shares with the queue
// consumer.
type App struct {
	Router     *chi.Mux
	Extraction *service.ExtractionService
	metrics    mw.Metrics
	startTime  time.Time
}

// NewApp wires stores and services on db. locker serializes extraction per
// contact; pass a lock.RedisLocker when several replicas share the database.
func NewApp(db *pgxpool.Pool, locker lock.ContactLocker, logger *zap.Logger) (*App, error) {
	tenantStore := store.NewTenantStore(db)
	memoryStore := store.NewMemoryStore(db)
	contradictionStore := store.NewContradictionStore(db)
	signalStore := store.NewSignalStore(db)
	profileStore := store.NewProfileStore(db)

	catalogs, err := service.NewCatalogProvider(config.CatalogDir(), config.CatalogCacheSize(), logger)
	if err != nil {
		return nil, err
	}

	extractionSvc := service.NewExtractionService(catalogs, memoryStore, contradictionStore, signalStore, locker, logger)
	extractionSvc.SetLockWait(config.ContactLockWait())
	extractionSvc.SetTransactor(store.NewTransactor(db))
	memorySvc := service.NewMemoryService(memoryStore, contradictionStore, logger)
	profileSvc := service.NewProfileService(memoryStore, signalStore, profileStore, logger)
	extractionSvc.SetProfileRefresher(profileSvc)

	app := NewAppWithDeps(Deps{
		DB:       db,
		Tenants:  tenantStore,
		Signals:  extractionSvc,
		Memories: memorySvc,
		Profiles: profileSvc,
	}, logger)
	app.Extraction = extractionSvc
	return app, nil
}

// NewAppWithDeps builds the router around already constructed services.
func NewAppWithDeps(deps Deps, logger *zap.Logger) *App {
	signalHandler := handlers.NewSignalHandler(deps.Signals)
	memoryHandler := handlers.NewMemoryHandler(deps.Memories)
	profileHandler := handlers.NewProfileHandler(deps.Profiles)
	tenantHandler := handlers.NewTenantHandler(deps.Tenants)

	r := chi.NewRouter()
	app := &App{Router: r, startTime: time.Now()}

	// Order matters: the request id must exist before logging, and panics
	// are recovered inside the logger so they are reported as 500s.
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(deps.DB))
	r.Get("/metrics", app.metricsHandler())

	// Bootstrap endpoint, no auth.
	r.Post("/v1/tenants", tenantHandler.Create)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(deps.Tenants))
		r.Use(mw.RateLimitTenant(config.TenantRateLimitRPS(), config.TenantRateLimitBurst()))

		r.Route("/projects/{projectID}/contacts/{contactID}", func(r chi.Router) {
			r.Post("/signals/{channel}", signalHandler.Apply)
			r.Post("/signals/{channel}/preview", signalHandler.Preview)
			r.Get("/memories", memoryHandler.List)
			r.Get("/profile", profileHandler.Get)
			r.Get("/lookalikes", profileHandler.Lookalikes)
		})

		r.Route("/memories/{id}", func(r chi.Router) {
			r.Get("/", memoryHandler.GetByID)
			r.Put("/lock", memoryHandler.Lock)
			r.Delete("/lock", memoryHandler.Unlock)
			r.Get("/contradictions", memoryHandler.Contradictions)
		})
	})

	return app
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok", "build": buildconfig.VersionInfo()}
		status := http.StatusOK
		if err := db.Ping(r.Context()); err != nil {
			body["status"] = "error"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
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
			"requests":       app.metrics.Snapshot(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
				"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"version":    buildconfig.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

var (
	_ domain.TenantStore        = (*store.TenantStore)(nil)
	_ domain.MemoryStore        = (*store.MemoryStore)(nil)
	_ domain.ContradictionStore = (*store.ContradictionStore)(nil)
	_ domain.SignalStore        = (*store.SignalStore)(nil)
	_ domain.ProfileStore       = (*store.ProfileStore)(nil)
	_ domain.Transactor         = (*store.Transactor)(nil)
	_ handlers.SignalService    = (*service.ExtractionService)(nil)
	_ handlers.MemoryCurator    = (*service.MemoryService)(nil)
	_ handlers.ProfileBuilder   = (*service.ProfileService)(nil)
	_ service.EngineSource      = (*service.CatalogProvider)(nil)
	_ lock.ContactLocker        = (*lock.RedisLocker)(nil)
	_ lock.ContactLocker        = (*lock.LocalLocker)(nil)
)
