// Package testutils 提供存儲整合測試用的 PostgreSQL 測試容器。
//
// 容器在測試結束時自動清理；跑不起 Docker 的環境用 -short 跳過
// 整合測試即可。
package testutils

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koopa0/xo-server/internal/storage/migrations"
)

// TestEnvironment 封裝測試環境
type TestEnvironment struct {
	PostgresPool *pgxpool.Pool
	PostgresURL  string
	Logger       *slog.Logger
	container    tc.Container
}

// SetupTestEnvironment 啟動 PostgreSQL 容器、執行遷移、註冊清理
//
// 使用範例：
//
//	func TestSomething(t *testing.T) {
//	    if testing.Short() {
//	        t.Skip("skipping integration test")
//	    }
//	    env := testutils.SetupTestEnvironment(t)
//	    // 使用 env.PostgresPool
//	}
func SetupTestEnvironment(t testing.TB) *TestEnvironment {
	t.Helper()

	ctx := context.Background()
	env := &TestEnvironment{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelWarn, // 測試時減少日誌噪音
		})),
	}

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	env.container = container

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	env.PostgresURL = url

	migrator, err := migrations.New(url, env.Logger)
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if err := migrator.Close(); err != nil {
		t.Fatalf("failed to close migrator: %v", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	env.PostgresPool = pool

	t.Cleanup(func() {
		env.Cleanup()
	})
	return env
}

// Cleanup 清理測試環境
func (env *TestEnvironment) Cleanup() {
	if env.PostgresPool != nil {
		env.PostgresPool.Close()
	}
	if env.container != nil {
		_ = env.container.Terminate(context.Background())
	}
}

// TruncateTables 清空對局與戰績表（用於測試之間的清理）
func (env *TestEnvironment) TruncateTables(t testing.TB) {
	t.Helper()

	ctx := context.Background()
	for _, table := range []string{"games", "users"} {
		if _, err := env.PostgresPool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}
