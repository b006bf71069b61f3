// Command goidentity-server exposes the goIdentity exchange engine over HTTP.
//
// Endpoints:
//
//	POST /v1/exchange/{from}/{to}  run one exchange, e.g. basic -> accessToken
//	POST /v1/revoke                revoke a signed token by its JTI
//	GET  /v1/exchanges             list registered exchange pairs
//	GET  /metrics                  Prometheus metrics
//	GET  /healthz                  liveness
//
// Accounts, applications and TOTP keys are read from PostgreSQL. Opaque
// tokens, OTPs and the JTI ledger live in Redis; with no Redis address an
// embedded miniredis is used. Generation events go to Kafka when brokers are
// configured and to Redis pub/sub otherwise.
//
// Run:
//
//	POSTGRES_DSN=postgres://... IDENTITY_JWT_PRIVATE_KEY_FILE=ed25519.pem \
//	  go run ./cmd/goidentity-server -config config.yml
//
//	curl -X POST localhost:8080/v1/exchange/basic/accessToken -u alice@example.com:correct-horse
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/events/kafka"
	promexport "github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	envFile := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	if err := run(*configFile, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile, envFile string) error {
	cfg, err := loadConfig(configFile, envFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------- infrastructure ----------
	rdb, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	// ---------- engine ----------
	engineCfg, err := cfg.Identity.engineConfig()
	if err != nil {
		return fmt.Errorf("identity config: %w", err)
	}
	engineCfg.Redis.Prefix = cfg.Redis.Prefix

	builder := goIdentity.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithAccountStore(postgres.NewAccountStore(pool)).
		WithApplicationStore(postgres.NewApplicationStore(pool)).
		WithTOTPKeyStore(postgres.NewTOTPKeyStore(pool)).
		WithLogger(logger)

	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := kafka.DefaultConfig(cfg.Kafka.Brokers)
		kcfg.TopicPrefix = cfg.Kafka.TopicPrefix
		publisher := kafka.NewPublisher(kcfg, logger)
		defer publisher.Close()
		builder = builder.WithEventPublisher(goIdentity.MultiPublisher{
			publisher,
			goIdentity.NewRedisPublisher(rdb, cfg.Redis.Prefix+":events:"),
		})
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	// ---------- metrics ----------
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		promexport.NewPrometheusExporter(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ---------- http ----------
	srv := &server{engine: engine, logger: logger, requestTimeout: cfg.HTTP.RequestTimeout}
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.routes(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Int("exchanges", len(engine.SupportedExchanges())).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg logConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	default:
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "goidentity-server").Logger()
}

func openRedis(cfg redisConfig, logger zerolog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		logger.Warn().Str("addr", mr.Addr()).Msg("redis.addr not set, using embedded miniredis")
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return rdb, func() { _ = rdb.Close(); mr.Close() }, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, func() { _ = rdb.Close() }, nil
}
