package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sitly-nl/matchsearch/internal/config"
	dbRedis "github.com/sitly-nl/matchsearch/internal/db/redis"
	"github.com/sitly-nl/matchsearch/internal/domain"
	logpkg "github.com/sitly-nl/matchsearch/internal/logger"
	"github.com/sitly-nl/matchsearch/internal/metrics"
	placerepo "github.com/sitly-nl/matchsearch/internal/repository/place"
	schemarepo "github.com/sitly-nl/matchsearch/internal/repository/schema"
	searchrepo "github.com/sitly-nl/matchsearch/internal/repository/search"
	trackingrepo "github.com/sitly-nl/matchsearch/internal/repository/tracking"
	userrepo "github.com/sitly-nl/matchsearch/internal/repository/user"
	chiTransport "github.com/sitly-nl/matchsearch/internal/transport/chi"
	healthuc "github.com/sitly-nl/matchsearch/internal/usecase/health"
	normalizeuc "github.com/sitly-nl/matchsearch/internal/usecase/normalize"
	placeuc "github.com/sitly-nl/matchsearch/internal/usecase/place"
	scoringuc "github.com/sitly-nl/matchsearch/internal/usecase/scoring"
	searchuc "github.com/sitly-nl/matchsearch/internal/usecase/search"
	sideeffectsuc "github.com/sitly-nl/matchsearch/internal/usecase/sideeffects"
	"github.com/sitly-nl/matchsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting matchsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Strings("tenants", cfg.TenantIDs()),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.Register()

	keys := domain.NewKeyspace(cfg.Storage.KeyPrefix)

	// Create repositories (domain-native, no adapters)
	schemaRepo := schemarepo.New(store, keys)
	userRepo := userrepo.New(store, keys)
	placeRepo := placerepo.New(store, keys)
	searchRepo := searchrepo.New(store, keys)
	trackingRepo := trackingrepo.New(store, keys)

	for _, tenant := range cfg.TenantIDs() {
		created, err := schemaRepo.Ensure(ctx, tenant)
		if err != nil {
			logger.Fatal("Failed to ensure indexes", zap.String("tenant", tenant), zap.Error(err))
		}
		if len(created) > 0 {
			logger.Info("Created indexes", zap.String("tenant", tenant), zap.Strings("indexes", created))
		}
	}

	// Create use case services
	englishLocales := make(map[string]int, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		englishLocales[t.ID] = t.EnglishLocaleID
	}
	placeSvc := placeuc.New(placeRepo, placeuc.Config{
		MinUsers:       cfg.Search.MinPlaceUsers,
		CircleSegments: cfg.Search.CircleSegments,
		EnglishLocales: englishLocales,
	})
	normalizer := normalizeuc.New(userRepo, placeSvc, normalizeuc.Config{
		DefaultDistanceKm:  cfg.Search.DefaultDistanceKm,
		PostalCodeMarginKm: cfg.Search.PostalCodeMarginKm,
		PremiumStaleness:   cfg.Search.PremiumStaleness,
		DefaultPageSize:    cfg.Search.DefaultPageSize,
		MaxPageSize:        cfg.Search.MaxPageSize,
	})
	compiler := searchuc.NewCompiler(searchuc.CompilerConfig{
		ClusterCells:       cfg.Search.ClusterCells,
		MaxExplainPageSize: cfg.Search.MaxExplainPageSize,
	})

	effectsSvc := sideeffectsuc.New(trackingRepo, userRepo, sideeffectsuc.Config{
		TrackingWindow: cfg.Search.TrackingWindow,
		TopN:           cfg.Search.TrackingTopN,
		RetryAttempts:  cfg.SideEffects.RetryAttempts,
		RetryDelay:     cfg.SideEffects.RetryDelay,
	}, logger)
	dispatcher, err := sideeffectsuc.NewDispatcher(
		effectsSvc, cfg.SideEffects.PoolSize, cfg.SideEffects.Timeout, logger,
	)
	if err != nil {
		logger.Fatal("Failed to create side effect dispatcher", zap.Error(err))
	}

	counts := searchuc.NewCountCache(cfg.Search.CountCacheTTL)
	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go counts.PurgeEvery(purgeCtx, cfg.Search.CountCacheTTL)

	searchSvc := searchuc.New(
		normalizer,
		scoringuc.NewBuilder(),
		compiler,
		searchRepo,
		counts,
		dispatcher,
	)

	// Health service
	healthSvc := healthuc.New(store, schemaRepo, cfg.TenantIDs())

	// Create chi server
	server := chiTransport.NewServer(searchSvc, placeSvc, healthSvc, cfg.TenantIDs(), logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.ActorMiddleware)
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	stopPurge()

	// Let in-flight tracking and preference writes finish before the store closes.
	dispatcher.Wait()
	dispatcher.Release()

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
// Handlers and services enrich the line through logpkg.AddFields.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)
			ctx = logpkg.WithEvent(ctx)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			reqLogger.Info("http_request", append(fields, logpkg.EventFields(ctx)...)...)
		})
	}
}
