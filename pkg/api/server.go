package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/companies"
	"github.com/platinummonkey/helpdesk/pkg/config"
	"github.com/platinummonkey/helpdesk/pkg/dashboard"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/middleware"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/orders"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/projects"
	"github.com/platinummonkey/helpdesk/pkg/reports"
	"github.com/platinummonkey/helpdesk/pkg/session"
	"github.com/platinummonkey/helpdesk/pkg/storage"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

const (
	// MaxBodyBytes bounds request bodies. A 10 MB attachment grows by a
	// third once base64 encoded.
	MaxBodyBytes = 16 << 20

	// MatrixCacheTTL is how long a resolved role matrix is reused.
	MatrixCacheTTL = 5 * time.Minute

	memorySessions = 10000
)

// Deps are the collaborators of a Server. Everything after Logger may be
// nil. AuditStore backs the audit browsing routes, which are only mounted
// when it is set.
type Deps struct {
	Config     *config.Config
	DB         *sql.DB
	Redis      *redis.Client
	Blobs      storage.BlobStore
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Registry   *prometheus.Registry
	Audit      audit.Logger
	AuditStore audit.Store
	Sessions   session.ServerStore
	Notifier   users.Notifier
}

// Server is the helpdesk HTTP API.
type Server struct {
	router  *mux.Router
	handler http.Handler

	Auth        *users.AuthService
	Tickets     *tickets.PostgresService
	Permissions *permissions.Service
}

type limiter interface {
	Handler(next http.Handler) http.Handler
}

// NewServer wires every service and route. ctx bounds background work such
// as rate limiter cleanup.
func NewServer(ctx context.Context, deps Deps) (*Server, error) {
	if deps.Config == nil || deps.DB == nil || deps.Blobs == nil || deps.Logger == nil {
		return nil, errors.New("api: config, db, blobs and logger are required")
	}
	cfg := deps.Config
	db := deps.DB
	auditLogger := deps.Audit
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}

	sessions := deps.Sessions
	switch {
	case sessions != nil:
	case deps.Redis != nil:
		sessions = session.NewRedisStore(deps.Redis)
	default:
		sessions = session.NewMemoryStore(memorySessions, cfg.Auth.TokenTTL)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	perms := permissions.NewService(permissions.NewStore(db), permissions.DefaultCatalog(), MatrixCacheTTL, deps.Metrics)
	guard := permissions.NewGuard(perms, deps.Metrics)
	files := attachments.NewService(db, deps.Blobs, deps.Metrics)

	companySvc := companies.NewPostgresService(db)
	projectSvc := projects.NewPostgresService(db)
	userSvc := users.NewPostgresService(db)
	ticketSvc := tickets.NewPostgresService(db, files, deps.Metrics)
	orderSvc := orders.NewPostgresService(db, files)
	authSvc := users.NewAuthService(users.AuthConfig{
		DB:       db,
		Users:    userSvc,
		Tokens:   tokens,
		Sessions: sessions,
		Matrices: perms,
		Notifier: deps.Notifier,
		ResetTTL: cfg.Auth.ResetTTL,
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
	})
	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return nil, err
	}
	userHandlers := users.NewHandlers(userSvc, authSvc, users.NewDropdownLoader(companySvc, perms, projectSvc), guard)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "Route not found")
	})
	if deps.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	// public
	observability.NewHealthChecker(db, deps.Redis, deps.Blobs).RegisterRoutes(router)
	if deps.Registry != nil {
		router.Handle("/metrics", observability.MetricsHandler(deps.Registry)).Methods("GET")
	}
	userHandlers.RegisterPublicRoutes(router)

	// authenticated
	var rl limiter
	rlConfig := &middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RPS,
		BurstSize:         cfg.RateLimit.Burst,
		IdleTimeout:       10 * time.Minute,
	}
	if deps.Redis != nil {
		rl = middleware.NewDistributedRateLimiterFromConfig(deps.Redis, rlConfig)
	} else {
		local := middleware.NewRateLimiter(rlConfig)
		local.StartCleanup(ctx)
		rl = local
	}

	protected := router.NewRoute().Subrouter()
	protected.Use(
		middleware.NewAuthMiddleware(tokens, sessions, false).Handler,
		rl.Handler,
		audit.NewMiddleware(auditLogger).Handler,
	)

	permissions.NewHandlers(perms, guard).RegisterRoutes(protected)
	companies.NewHandlers(companySvc, guard).RegisterRoutes(protected)
	projects.NewHandlers(projectSvc, guard).RegisterRoutes(protected)
	userHandlers.RegisterRoutes(protected)
	reports.NewHandlers(ticketSvc, guard, deps.Metrics).WithOTel(otelMetrics).RegisterRoutes(protected)
	tickets.NewHandlers(ticketSvc, files, guard).RegisterRoutes(protected)
	orders.NewHandlers(orderSvc, files, guard).RegisterRoutes(protected)
	dashboard.NewHandlers(dashboard.NewService(db), guard).RegisterRoutes(protected)
	if deps.AuditStore != nil {
		audit.NewHandlers(deps.AuditStore, guard.RequirePermission(permissions.PagePermissions, permissions.ActionEdit)).
			RegisterRoutes(protected)
	}

	chain := httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.CORSMiddleware(cfg.Server.CORSOrigins),
		httputil.MaxBytesMiddleware(MaxBodyBytes),
		audit.Inject(auditLogger),
	)
	return &Server{
		router:      router,
		handler:     otelhttp.NewHandler(chain(router), "helpdesk"),
		Auth:        authSvc,
		Tickets:     ticketSvc,
		Permissions: perms,
	}, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table for inspection.
func (s *Server) Router() *mux.Router {
	return s.router
}
