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
	"github.com/sai-karthik-k/ecommerce-microservices/internal/events"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/httpx"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/productclient"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/store"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/telemetry"
)

const serviceName = "orders-service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := telemetry.NewLogger(cfg.ServiceName, cfg.Environment)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("orders service stopped", zap.Error(err))
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

	repository, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher orders.EventPublisher = orders.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ServiceName, logger)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Warn("error closing event publisher", zap.Error(err))
			}
		}()
		publisher = p
		logger.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	gateway := productclient.New(cfg.ProductServiceURL, cfg.ProductServiceTimeout)
	useCase := orders.NewOrderUseCase(repository, gateway,
		orders.WithLogger(logger),
		orders.WithPublisher(publisher),
		orders.WithTracer(otel.Tracer(cfg.ServiceName)),
		orders.WithMeter(otel.Meter(cfg.ServiceName)),
	)
	handler := NewOrderHandler(useCase, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(handler, cfg.ServiceName, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("orders service listening", zap.String("port", cfg.Port))
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

	logger.Info("shutting down orders service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(handler *OrderHandler, service string, logger *zap.Logger) *gin.Engine {
	httpx.UseJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(httpx.RequestID())
	r.Use(httpx.Logger(logger))

	handler.Register(r)
	return r
}

// openStore builds the order store selected by STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (orders.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		rdb := store.NewRedisClient(cfg.RedisAddr)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("using redis order store", zap.String("addr", cfg.RedisAddr))
		return store.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil

	case config.StoreDriverMemory:
		logger.Warn("using in-memory order store")
		return store.NewMemoryStore(), func() {}, nil

	default:
		pool, err := store.OpenPool(ctx, cfg.PostgresURL(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.CreateSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	}
}

