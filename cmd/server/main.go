package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"retrieval-orchestrator/internal/adapter/qdrant"
	"retrieval-orchestrator/internal/adapter/repository"
	"retrieval-orchestrator/internal/di"
	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra"
	"retrieval-orchestrator/internal/infra/config"
	"retrieval-orchestrator/internal/infra/logger"
)

func main() {
	// 1. Load Config
	_ = godotenv.Load()
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New()
	slog.SetDefault(log)

	// 3. Initialize Dense Search Backend
	dense, cleanup, err := newDenseBackend(cfg, log)
	if err != nil {
		log.Error("failed to initialize dense backend", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// 4. Wire Application
	components, err := di.NewApplicationComponents(cfg, dense, log)
	if err != nil {
		log.Error("failed to wire application", "error", err)
		os.Exit(1)
	}

	// 5. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// 6. Register Handlers
	components.Handler.Register(e)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// 7. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting server", "addr", addr, "dense_backend", cfg.Dense.Backend)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 8. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}

// newDenseBackend creates the configured dense search port. Qdrant is the
// default; a pgvector-backed store is available for deployments that keep
// documents in PostgreSQL.
func newDenseBackend(cfg *config.Config, log *slog.Logger) (domain.DenseSearchPort, func(), error) {
	switch cfg.Dense.Backend {
	case "postgres":
		dsn := infra.BuildDSN(cfg.Dense.DBHost, cfg.Dense.DBPort, cfg.Dense.DBUser, cfg.Dense.DBPassword, cfg.Dense.DBName)
		pool, err := infra.NewPostgresDB(context.Background(), dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return repository.NewDocumentStore(pool), pool.Close, nil
	case "qdrant", "":
		store, err := qdrant.NewDenseStore(cfg.Dense.QdrantAddr, cfg.Dense.Collection)
		if err != nil {
			return nil, nil, fmt.Errorf("connect qdrant: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("qdrant close failed", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown dense backend %q", cfg.Dense.Backend)
	}
}
