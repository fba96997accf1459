package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	documenthandler "docucred/internal/document/handler"
	documentservice "docucred/internal/document/service"
	documentstore "docucred/internal/document/store"
	"docucred/internal/engine"
	identityhandler "docucred/internal/identity/handler"
	identityservice "docucred/internal/identity/service"
	identitystore "docucred/internal/identity/store"
	issuancehandler "docucred/internal/issuance/handler"
	issuanceservice "docucred/internal/issuance/service"
	jwttoken "docucred/internal/jwt_token"
	"docucred/internal/platform/config"
	"docucred/internal/platform/database"
	"docucred/internal/platform/health"
	"docucred/internal/platform/logger"
	"docucred/internal/platform/metrics"
	"docucred/internal/platform/redis"
	httptransport "docucred/internal/transport/http"
	"docucred/pkg/platform/circuit"
	"docucred/pkg/secrets"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies, exposes the HTTP router and keeps the server
// lifecycle small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type backends struct {
	pool    *database.Pool
	redis   *redis.Client
	users   identityservice.UserStore
	entries documentservice.Store
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing docucred",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"engine_url", cfg.Engine.BaseURL,
	)
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set; using the development signing key")
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	store, err := openBackends(ctx, cfg, registry, log)
	if err != nil {
		return err
	}
	defer store.close(log)

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenTTL)
	identity := identityservice.New(store.users, jwt, secrets.NewHasher(cfg.BcryptCost),
		identityservice.WithLogger(log),
		identityservice.WithMetrics(m),
	)

	breaker := circuit.New("engine",
		circuit.WithFailureThreshold(cfg.Engine.FailureThreshold),
		circuit.WithCooldown(cfg.Engine.Cooldown),
	)
	client := engine.New(cfg.Engine.BaseURL, cfg.Engine.Timeout,
		engine.WithBreaker(breaker),
		engine.WithMetrics(m),
		engine.WithLogger(log),
	)

	documents := documentservice.New(store.entries, client, client,
		documentservice.WithLogger(log),
		documentservice.WithMetrics(m),
		documentservice.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	issuance, err := issuanceservice.New(client, client.BaseURL(),
		issuanceservice.WithLogger(log),
		issuanceservice.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("engine_circuit", func(context.Context) error {
		if client.CircuitState() == circuit.StateOpen {
			return errors.New("circuit open")
		}
		return nil
	})
	healthHandler.RegisterDetail("engine_circuit", func() string { return client.CircuitState().String() })
	if store.pool != nil {
		healthHandler.RegisterCheck("postgres", store.pool.Health)
	}
	if store.redis != nil {
		healthHandler.RegisterCheck("redis", store.redis.Health)
	}

	router := httptransport.NewRouter(httptransport.Routes{
		Identity:  identityhandler.New(identity, log),
		Documents: documenthandler.New(documents, cfg.MaxUploadBytes, log),
		Issuance:  issuancehandler.New(issuance, log),
		Health:    healthHandler,
	}, jwt.Validator(), registry, httptransport.Config{
		AllowedOrigin:  cfg.AllowedOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.Engine.Timeout + 5*time.Second,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openBackends picks storage from configuration. DATABASE_URL moves users
// and entries to PostgreSQL; REDIS_URL moves entries to Redis. Without
// either, everything stays in memory.
func openBackends(ctx context.Context, cfg config.Server, reg prometheus.Registerer, log *slog.Logger) (*backends, error) {
	b := &backends{
		users:   identitystore.NewInMemoryUserStore(),
		entries: documentstore.NewInMemory(),
	}

	pool, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL), log, reg)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		b.pool = pool
		if err := pool.Migrate(ctx, &identitystore.UserRecord{}); err != nil {
			b.close(log)
			return nil, err
		}
		if err := documentstore.Migrate(ctx, pool.Gorm()); err != nil {
			b.close(log)
			return nil, err
		}
		b.users = identitystore.NewPostgres(pool.Gorm())
		b.entries = documentstore.NewPostgres(pool.Gorm())
		log.Info("using postgres for users and cache entries")
	}

	rdb, err := redis.New(ctx, redis.DefaultConfig(cfg.RedisURL), reg)
	if err != nil {
		b.close(log)
		return nil, err
	}
	if rdb != nil {
		b.redis = rdb
		b.entries = documentstore.NewRedis(rdb)
		log.Info("using redis for cache entries")
	}

	if pool == nil && rdb == nil {
		log.Warn("no DATABASE_URL or REDIS_URL; data is kept in memory and lost on restart")
	}
	return b, nil
}

func (b *backends) close(log *slog.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if b.pool != nil {
		if err := b.pool.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}
