package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/config"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/httpx"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/products"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/telemetry"
)

const serviceName = "products-service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := telemetry.NewLogger(cfg.ServiceName, cfg.Environment)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("products service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		providers, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				logger.Warn("error shutting down telemetry", zap.Error(err))
			}
		}()
	}

	db, err := products.OpenDB(ctx, cfg.PostgresDSN(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repository := products.NewPostgresRepository(db)
	if err := repository.CreateSchema(ctx); err != nil {
		return err
	}

	useCase := products.NewProductUseCase(repository, logger)
	handler := NewProductHandler(useCase, otel.Tracer(cfg.ServiceName), logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(handler, cfg.ServiceName, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("products service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down products service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(handler *ProductHandler, service string, logger *zap.Logger) *gin.Engine {
	httpx.UseJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(httpx.RequestID())
	r.Use(httpx.Logger(logger))

	handler.Register(r)
	return r
}
