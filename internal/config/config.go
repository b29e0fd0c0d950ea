package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	ServiceName string
	Env         string
	LogFile     string
	Server      ServerConfig
	Store       StoreConfig
	Auth        AuthConfig
	Ledger      LedgerConfig
}

type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Driver          string
	MySQLDSN        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RedisAddr       string
	RedisPoolSize   int
	IdempotencyTTL  time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

type LedgerConfig struct {
	MaxAttempts       int
	RetryBackoff      time.Duration
	LowStockThreshold int
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		ServiceName: getenvDefault("SERVICE_NAME", "sweet-shop"),
		Env:         getenvDefault("ENV", "dev"),
		LogFile:     os.Getenv("LOG_FILE"),
		Server: ServerConfig{
			HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
			GRPCAddr:        getenvDefault("GRPC_ADDR", ":50051"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		},
		Store: StoreConfig{
			Driver:          getenvDefault("STORE_DRIVER", DriverMySQL),
			MySQLDSN:        getenvDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/sweetshop?parseTime=true"),
			MaxOpenConns:    getInt("MYSQL_MAX_OPEN_CONNS", 50, &errs),
			MaxIdleConns:    getInt("MYSQL_MAX_IDLE_CONNS", 25, &errs),
			ConnMaxLifetime: getDuration("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute, &errs),
			RedisAddr:       os.Getenv("REDIS_ADDR"),
			RedisPoolSize:   getInt("REDIS_POOL_SIZE", 100, &errs),
			IdempotencyTTL:  getDuration("IDEMPOTENCY_TTL", 24*time.Hour, &errs),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			TokenTTL:      getDuration("TOKEN_TTL", 30*time.Minute, &errs),
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Ledger: LedgerConfig{
			MaxAttempts:       getInt("PURCHASE_MAX_ATTEMPTS", 3, &errs),
			RetryBackoff:      getDuration("PURCHASE_RETRY_BACKOFF", 10*time.Millisecond, &errs),
			LowStockThreshold: getInt("LOW_STOCK_THRESHOLD", 10, &errs),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.Env != "dev" {
			errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
		}
		cfg.Auth.JWTSecret = "dev-secret-change-me"
	}
	if cfg.Store.Driver != DriverMySQL && cfg.Store.Driver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMySQL, DriverMemory, cfg.Store.Driver))
	}
	if cfg.Ledger.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("PURCHASE_MAX_ATTEMPTS must be at least 1, got %d", cfg.Ledger.MaxAttempts))
	}
	if (cfg.Auth.AdminEmail == "") != (cfg.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
