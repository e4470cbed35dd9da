package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/centinelapos/webapp/internal/backend"
	"github.com/centinelapos/webapp/internal/chat"
	"github.com/centinelapos/webapp/internal/config"
	"github.com/centinelapos/webapp/internal/db"
	"github.com/centinelapos/webapp/internal/leads"
	"github.com/centinelapos/webapp/internal/middleware"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/telemetry/metrics"
	"github.com/centinelapos/webapp/internal/telemetry/tracing"
	"github.com/centinelapos/webapp/internal/validation"
	"github.com/centinelapos/webapp/internal/web"
	"github.com/centinelapos/webapp/pkg"
)

const (
	sessionsCleanInterval = time.Hour
	leadsDBName           = "centinela_web"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	sessions    *session.Manager
	rateLimiter middleware.RequestRateLimiter
	ipResolver  *pkg.IPResolver
	apiClient   *backend.Client
	renderer    *web.Renderer
	validator   *validation.Validator
	leadsRepo   leads.Repo

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RedisPassword           string
	DBPassword              string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "centinela-webapp")
	if err != nil {
		return nil, fmt.Errorf("honeycomb setup: %w", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     params.DBPassword,
		MaxConns:       cfg.PostgresMaxConns,
		AppName:        "centinela-webapp",
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	promRegistry := metrics.SetupPrometheus()
	if err := metrics.RegisterDBPool(promRegistry, dbPool, leadsDBName); err != nil {
		return nil, fmt.Errorf("register db pool collector: %w", err)
	}
	metricsManager := metrics.NewManager("centinela", "webapp", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	leadsRepo := leads.NewPsqlRepo(dbPool)
	if err := leadsRepo.EnsureSchema(ctx); err != nil {
		log.Errorf("ensure leads schema: %s", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	sessionStore := session.NewRedisStore(rdb, cfg.SessionTTL())
	go func() {
		ticker := time.NewTicker(sessionsCleanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionStore.ScanAndClean(ctx)
			}
		}
	}()

	ipResolver, err := pkg.NewIPResolver(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	renderer, err := web.NewRenderer(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("new renderer: %w", err)
	}

	return &Server{
		config:      cfg,
		dbPool:      dbPool,
		redisClient: rdb,
		sessions: session.NewManager(sessionStore, session.ManagerParams{
			TTL:          cfg.SessionTTL(),
			CookiePath:   cookiePath(cfg.BasePath),
			CookieSecure: cfg.SessionCookieSecure,
		}),
		rateLimiter: redis_rate.NewLimiter(rdb),
		ipResolver:  ipResolver,
		apiClient: backend.NewClient(
			cfg.APIBaseURL,
			backend.NewHTTPClient(cfg.APITimeoutDuration()),
			metricsManager,
		),
		renderer:  renderer,
		validator: validation.New(),
		leadsRepo: leadsRepo,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func cookiePath(basePath string) string {
	if basePath == "" {
		return "/"
	}
	return basePath
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("centinela-router"))
	r.Use(middleware.PanicRecovery(s.config.BasePath, s.metricsManager))
	r.Use(middleware.ClientIP(s.ipResolver))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest(s.config.MaxBodyBytes()))
	r.Use(middleware.LegacyRedirect(s.config.BasePath))

	params := web.HandlerParams{
		BasePath:       s.config.BasePath,
		API:            s.apiClient,
		Sessions:       s.sessions,
		Validator:      s.validator,
		Renderer:       s.renderer,
		LeadsRepo:      s.leadsRepo,
		MetricsManager: s.metricsManager,
		GoogleAuthURL:  s.config.APIBaseURL + "/auth/google",
	}
	if s.config.ChatURL != "" {
		params.ChatRelay = chat.NewRelay(chat.RelayParams{
			ChatURL:        s.config.ChatURL,
			AllowedOrigins: s.config.AllowedOrigins,
			MetricsManager: s.metricsManager,
		})
	} else {
		log.Warnln("chat url not set, dashboard chat disabled")
	}
	webHandler := web.NewHandler(params)

	var loginLimiter func(next http.Handler) http.Handler
	if s.rateLimiter != nil {
		loginLimiter = middleware.RateLimit(s.rateLimiter, s.metricsManager, "login", s.config.LoginRateLimit)
	}

	base := r.PathPrefix(s.config.BasePath).Subrouter()
	base.Use(s.sessions.Middleware())
	base.Use(middleware.SameOrigin(s.config.AllowedOrigins))
	webHandler.SetupRoutes(base, loginLimiter)

	// all the rest, including the bare host, lands on the home page
	r.NotFoundHandler = middleware.LegacyRedirect(s.config.BasePath)(webHandler.Fallback())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:           router,
		Addr:              ipAndPort,
		WriteTimeout:      time.Minute,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ConnState:         s.connStateMetrics,
	}

	metricsAddr := net.JoinHostPort(s.config.MetricsHost, s.config.MetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           s.metricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s], base path [%s]", ipAndPort, s.config.BasePath)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) metricsRouter() *mux.Router {
	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	return metricsRouter
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown http server: %s", err)
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown metrics http server: %s", err)
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
