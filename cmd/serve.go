package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"writingstuff/config"
	"writingstuff/config/database"
	"writingstuff/internal/ai"
	authRepo "writingstuff/internal/auth/repository"
	authService "writingstuff/internal/auth/service"
	docRepo "writingstuff/internal/document/repository"
	docService "writingstuff/internal/document/service"
	"writingstuff/internal/enhance"
	"writingstuff/internal/search"
	"writingstuff/internal/storage"
	"writingstuff/internal/summary"
	"writingstuff/middleware"
	"writingstuff/pkg/logger"
	"writingstuff/router"
	"writingstuff/socket"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCMD() *cobra.Command {
	var addr string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return run(cfg)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")

	return serve
}

type stores struct {
	accounts  authRepo.AccountRepository
	documents docRepo.DocumentRepository
	ping      func(ctx context.Context) error
	close     func()
}

func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	if cfg.Driver == "memory" {
		logger.Sugar.Warn("Using the in-memory store; data is lost on restart")
		return &stores{
			accounts:  authRepo.NewMemoryAccountRepository(),
			documents: docRepo.NewMemoryDocumentRepository(),
			close:     func() {},
		}, nil
	}

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &stores{
		accounts:  authRepo.NewPostgresAccountRepository(db),
		documents: docRepo.NewPostgresDocumentRepository(db),
		ping:      db.PingContext,
		close:     func() { closeDB(db) },
	}, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Sugar.Warnf("Closing database: %v", err)
	}
}

func summaryCache(ctx context.Context, cfg config.RedisConfig) (summary.Cache, func(), error) {
	if cfg.Addr == "" {
		return summary.NewMemoryCache(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	logger.Sugar.Infof("Summary cache backed by redis at %s", cfg.Addr)
	return summary.NewRedisCache(client, cfg.SummaryTTL), func() { client.Close() }, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.close()

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	provider, err := ai.New(ctx, cfg.AI)
	if err != nil {
		return err
	}
	cache, closeCache, err := summaryCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeCache()

	chunker := search.NewChunker(
		search.WithChunkSize(cfg.Documents.ChunkSize),
		search.WithChunkOverlap(cfg.Documents.ChunkOverlap),
	)
	auth := authService.NewAuthService(st.accounts, cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
	docs := docService.NewDocumentService(st.documents, blobs,
		search.NewEngine(chunker),
		summary.NewEngine(provider, cache, cfg.Documents.SummarySentences, cfg.Documents.SummaryMaxChars),
		enhance.NewEngine(provider),
		nil,
		docService.Options{
			MaxUploadBytes: cfg.Documents.MaxUploadBytes,
			SearchLimit:    cfg.Documents.SearchLimit,
		})

	hub := socket.NewHub(docs.Authorize)
	hub.AllowedOrigins = cfg.HTTP.AllowedOrigins
	docs.Events = hub
	go hub.Run(ctx)

	worker := docService.NewIndexWorker(cfg.Documents.IndexWorkers, docs.Reindex)
	docs.Indexer = worker
	worker.Start(ctx)

	handler := router.Setup(router.Deps{
		Auth:           auth,
		Documents:      docs,
		Hub:            hub,
		Limiter:        middleware.NewRateLimiter(cfg.AI.RatePerSecond, cfg.AI.Burst),
		MaxUploadBytes: cfg.Documents.MaxUploadBytes,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Ping:           st.ping,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Sugar.Infof("Backend listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			worker.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Sugar.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Warnf("Graceful shutdown incomplete: %v", err)
	}
	worker.Wait()
	return nil
}
