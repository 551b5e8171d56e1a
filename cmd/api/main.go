package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"assignmenthelper/api/internal/app"
	"assignmenthelper/api/internal/auth"
	"assignmenthelper/api/internal/authpw"
	"assignmenthelper/api/internal/cache"
	"assignmenthelper/api/internal/config"
	"assignmenthelper/api/internal/embedding"
	"assignmenthelper/api/internal/logger"
	"assignmenthelper/api/internal/objectstore"
	"assignmenthelper/api/internal/search"
	"assignmenthelper/api/internal/store"
	"assignmenthelper/api/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		log.Fatal("migrations failed", "error", err)
	}
	if len(applied) > 0 {
		log.Info("migrations applied", "versions", applied)
	}

	dataStore := store.NewPostgresStore(db)

	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTTL)
	if err != nil {
		log.Fatal("token issuer", "error", err)
	}

	var embedder embedding.Embedder
	openAI, err := embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	if err != nil {
		log.Warn("semantic search disabled", "error", err)
		unavailable := err
		embedder = embedding.Func(func(context.Context, string) ([]float32, error) {
			return nil, unavailable
		})
	} else {
		embedder = openAI
	}

	if strings.TrimSpace(cfg.RedisURL) != "" && openAI != nil {
		redisStore, err := cache.NewRedisStore(cfg.RedisURL, cfg.EmbeddingCacheTTL)
		if err != nil {
			log.Warn("redis unavailable, query embeddings are not cached", "error", err)
		} else {
			defer redisStore.Close()
			log.Info("caching query embeddings in redis")
			embedder = embedding.NewCached(openAI, redisStore, openAI.Model(), log.With("component", "embedding"))
		}
	}

	var ranker search.Ranker
	switch strings.ToLower(cfg.SearchBackend) {
	case "memory":
		ranker = search.NewMemory(dataStore)
	default:
		ranker = search.NewPgVector(db)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log.With("component", "meilisearch"))
		defer meiliClient.Close()
	}
	searchService := search.NewService(embedder, ranker, search.NewPgCatalog(db), meiliClient, search.Options{
		Dimension: cfg.VectorDimension,
		Floor:     cfg.RelevanceFloor,
	}, log.With("component", "search"))
	searchService.ReindexAllFromPG(ctx)

	deps := app.Deps{
		Store:    dataStore,
		Tokens:   tokens,
		Hasher:   authpw.NewHasher(cfg.BcryptCost),
		Search:   searchService,
		Notifier: webhook.NewClient(cfg.WebhookTimeout),
		Log:      log,
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archive, err := objectstore.New(ctx, cfg.MinioEndpoint, cfg.MinioBucket, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			log.Warn("object storage unavailable, uploads will not be archived", "error", err)
		} else {
			deps.Archiver = archive
		}
	}
	service := app.NewService(cfg, deps)

	log.Info("search configured",
		"backend", cfg.SearchBackend,
		"dimension", cfg.VectorDimension,
		"floor", cfg.RelevanceFloor,
	)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("assignment helper API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		log.Error("server failed", "error", err)
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
