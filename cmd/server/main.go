package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/sweet-shop/internal/adapter/handler"
	"github.com/rl1809/sweet-shop/internal/adapter/handler/rpc"
	"github.com/rl1809/sweet-shop/internal/adapter/storage"
	"github.com/rl1809/sweet-shop/internal/adapter/token"
	"github.com/rl1809/sweet-shop/internal/config"
	"github.com/rl1809/sweet-shop/internal/core/service"
	"github.com/rl1809/sweet-shop/internal/observability"
	"github.com/rl1809/sweet-shop/internal/pkg/logging"
	"github.com/rl1809/sweet-shop/internal/port"
)

// store is what both storage drivers provide.
type store interface {
	port.CatalogRepository
	port.LedgerRepository
	port.UserRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.MustNew(logging.Options{Service: cfg.ServiceName, Env: cfg.Env, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server_exit", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, idempotency, cleanup, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	issuer, err := token.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(db, issuer, 0)
	catalogService := service.NewCatalogService(db, cfg.Ledger.LowStockThreshold, metrics)
	ledgerService := service.NewLedgerService(db, db, idempotency, service.LedgerOptions{
		MaxAttempts:  cfg.Ledger.MaxAttempts,
		RetryBackoff: cfg.Ledger.RetryBackoff,
		Metrics:      metrics,
	})

	if cfg.Auth.AdminEmail != "" {
		admin, err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, "Administrator", cfg.Auth.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info("admin_ready", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
	}

	// gRPC
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryServerInterceptor(logger, metrics, authService)))
	rpc.RegisterLedgerServer(grpcServer, handler.NewGRPCHandler(catalogService, ledgerService))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(rpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	go func() {
		logger.Info("grpc_server_start", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc_server_error", zap.Error(err))
		}
	}()

	// HTTP
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpHandler := handler.NewHTTPHandler(catalogService, ledgerService, authService)
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: handler.NewRouter(httpHandler, logger, metrics, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}

	go func() {
		logger.Info("http_server_start", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}

	grpcServer.GracefulStop()
	logger.Info("grpc_server_stopped")
	return nil
}

// openStores connects the configured storage driver. Redis is optional; without
// it idempotency keys live in process memory.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, port.IdempotencyRepository, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	var db store
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using_memory_store", zap.String("reason", "STORE_DRIVER=memory"))
		db = storage.NewMemoryStore()
	default:
		sqlDB, err := sql.Open("mysql", cfg.Store.MySQLDSN)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("open mysql: %w", err)
		}
		closers = append(closers, sqlDB.Close)
		sqlDB.SetMaxOpenConns(cfg.Store.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Store.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Store.ConnMaxLifetime)

		if err := sqlDB.PingContext(ctx); err != nil {
			cleanup()
			return nil, nil, func() {}, fmt.Errorf("ping mysql: %w", err)
		}
		adapter := storage.NewMySQLAdapter(sqlDB)
		if err := adapter.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, func() {}, err
		}
		logger.Info("connected_mysql")
		db = adapter
	}

	if cfg.Store.RedisAddr == "" {
		logger.Warn("using_memory_idempotency", zap.String("reason", "REDIS_ADDR not set"))
		return db, storage.NewMemoryIdempotency(), cleanup, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		PoolSize: cfg.Store.RedisPoolSize,
	})
	closers = append(closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cleanup()
		return nil, nil, func() {}, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected_redis", zap.String("addr", cfg.Store.RedisAddr))
	return db, storage.NewRedisAdapter(rdb, cfg.Store.IdempotencyTTL), cleanup, nil
}
