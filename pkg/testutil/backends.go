package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docucred/internal/platform/database"
	"docucred/internal/platform/redis"
)

// RequirePostgres opens TEST_DATABASE_URL, migrates the given models and
// truncates the listed tables. The test is skipped when the variable is unset.
func RequirePostgres(t *testing.T, tables []string, models ...any) *database.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.New(ctx, database.DefaultConfig(url), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	if err := pool.Migrate(ctx, models...); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	for _, table := range tables {
		if err := pool.Gorm().WithContext(ctx).Exec("TRUNCATE TABLE " + table + " CASCADE").Error; err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return pool
}

// RequireRedis connects to TEST_REDIS_URL and flushes the selected database.
// The test is skipped when the variable is unset.
func RequireRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := redis.New(ctx, redis.DefaultConfig(url), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("connect test redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test redis: %v", err)
	}
	return client
}
