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

	"github.com/fusedex/fusedex/internal/cache"
	"github.com/fusedex/fusedex/internal/config"
	dbRedis "github.com/fusedex/fusedex/internal/db/redis"
	domsearch "github.com/fusedex/fusedex/internal/domain/search"
	logpkg "github.com/fusedex/fusedex/internal/logger"
	"github.com/fusedex/fusedex/internal/metrics"
	"github.com/fusedex/fusedex/internal/normalize"
	"github.com/fusedex/fusedex/internal/queue"
	collectionrepo "github.com/fusedex/fusedex/internal/repository/collection"
	documentrepo "github.com/fusedex/fusedex/internal/repository/document"
	jobrepo "github.com/fusedex/fusedex/internal/repository/job"
	"github.com/fusedex/fusedex/internal/retrieval"
	chiTransport "github.com/fusedex/fusedex/internal/transport/chi"
	openaiEmb "github.com/fusedex/fusedex/internal/transport/openai"
	"github.com/fusedex/fusedex/internal/transport/scorer"
	documentuc "github.com/fusedex/fusedex/internal/usecase/document"
	"github.com/fusedex/fusedex/internal/usecase/health"
	ingestuc "github.com/fusedex/fusedex/internal/usecase/ingest"
	searchuc "github.com/fusedex/fusedex/internal/usecase/search"
	"github.com/fusedex/fusedex/internal/version"
)

func main() {
	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fusedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterPipelineMetrics()

	// Repositories
	collRegistry := collectionrepo.New(store, cfg.Embedding.Dimensions)
	docRepo := documentrepo.New(store)
	jobRepo := jobrepo.New(store, time.Duration(cfg.Ingestion.JobRetentionSec)*time.Second)

	for _, name := range cfg.Storage.Collections {
		if err := collRegistry.Ensure(ctx, name); err != nil {
			logger.Fatal("Failed to ensure collection",
				zap.String("collection", name), zap.Error(err))
		}
	}
	logger.Info("Collections ready", zap.Strings("collections", cfg.Storage.Collections))

	// Dense embedder
	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Retrieval ports: dense and lexical always, neural when configured
	ports := []retrieval.Port{
		retrieval.NewDensePort(embedder, store),
		retrieval.NewLexicalPort(store),
	}
	portTimeout := time.Duration(cfg.Retrieval.PortTimeoutSec) * time.Second
	var neuralPort *scorer.NeuralPort
	if cfg.Retrieval.NeuralURL != "" {
		neuralPort = scorer.NewNeuralPort(cfg.Retrieval.NeuralURL, portTimeout)
		ports = append(ports, neuralPort)
		logger.Info("Neural-sparse port enabled", zap.String("url", cfg.Retrieval.NeuralURL))
	}

	// Cross-encoder reranker, optional
	var reranker domsearch.Reranker
	var rerankChecker health.DependencyChecker
	if cfg.Rerank.URL != "" {
		r := scorer.NewReranker(cfg.Rerank.URL, time.Duration(cfg.Rerank.TimeoutSec)*time.Second)
		reranker = r
		rerankChecker = r
		logger.Info("Reranker enabled", zap.String("url", cfg.Rerank.URL))
	}

	// Result cache
	var cacheStore cache.Store
	switch cfg.Cache.Driver {
	case "memory":
		cacheStore = cache.NewMemoryStore(cfg.Cache.LocalSize, time.Duration(cfg.Cache.TTLSec)*time.Second)
	default:
		cacheStore = cache.NewRedisStore(store)
	}
	resultCache := cache.NewCoordinator(cacheStore, store, time.Duration(cfg.Cache.TTLSec)*time.Second)

	// Use case services
	searchSvc := searchuc.New(ports, collRegistry, docRepo, reranker, resultCache, searchuc.Config{
		RRFK:        cfg.Retrieval.RRFK,
		PortTimeout: portTimeout,
		Weights:     sourceWeights(cfg.Retrieval.Weights),
		RerankTopN:  cfg.Rerank.TopN,
	})
	docSvc := documentuc.New(docRepo, collRegistry, resultCache)

	ingestQueue := queue.NewRedisQueue(store, time.Second)
	ingestSvc := ingestuc.New(
		docRepo, jobRepo, collRegistry, ingestQueue, embedder, resultCache,
		normalize.New(cfg.Embedding.MaxInputChars),
		ingestuc.Config{
			ChunkSize:    cfg.Ingestion.ChunkSize,
			ChunkOverlap: cfg.Ingestion.ChunkOverlap,
			BatchSize:    cfg.Ingestion.BatchSize,
			MaxAttempts:  cfg.Ingestion.MaxAttempts,
			BackoffBase:  time.Duration(cfg.Ingestion.BackoffBaseMS) * time.Millisecond,
		},
	)

	var neuralChecker health.DependencyChecker
	if neuralPort != nil {
		neuralChecker = neuralPort
	}
	healthSvc := health.New(store, embedder, neuralChecker, rerankChecker)

	// Ingestion worker pool
	worker, err := ingestuc.NewWorker(ingestSvc, ingestQueue, cfg.Ingestion.Workers)
	if err != nil {
		logger.Fatal("Failed to create ingestion worker", zap.Error(err))
	}
	workerCtx, stopWorker := context.WithCancel(logpkg.ContextWithLogger(ctx, logger))
	go worker.Run(workerCtx)
	logger.Info("Ingestion worker started", zap.Int("pool_size", cfg.Ingestion.Workers))

	// HTTP server
	server := chiTransport.NewServer(
		searchSvc, docSvc, ingestSvc, healthSvc, logger,
		time.Duration(cfg.Ingestion.WaitPollSec)*time.Second,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(chiTransport.IdentityMiddleware())
	r.Use(metrics.Middleware())
	server.Routes(r)

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

	stopWorker()
	worker.Stop()

	logger.Info("Server stopped gracefully")
}

func sourceWeights(w map[string]float64) map[domsearch.Source]float64 {
	if len(w) == 0 {
		return nil
	}
	out := make(map[domsearch.Source]float64, len(w))
	for k, v := range w {
		out[domsearch.Source(k)] = v
	}
	return out
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
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
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

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
