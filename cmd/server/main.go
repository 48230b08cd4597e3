package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/xo-server/internal/config"
	"github.com/koopa0/xo-server/internal/match"
	"github.com/koopa0/xo-server/internal/storage"
	"github.com/koopa0/xo-server/internal/storage/migrations"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "", "配置檔路徑（空值使用預設配置）")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
		memStore   = flag.Bool("memory", false, "使用記憶體存儲（本地開發，不連資料庫）")
	)
	flag.Parse()

	// 讀取配置，命令行參數優先
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "讀取配置失敗:", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// 設置日誌
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	// 建立存儲：生產走 PostgreSQL，本地開發可用 -memory
	var store storage.GameStore
	if *memStore {
		store = storage.NewMemory()
		logger.Info("使用記憶體存儲")
	} else {
		databaseURL := cfg.PostgresURL()

		migrator, err := migrations.New(databaseURL, logger)
		if err != nil {
			logger.Error("建立遷移管理器失敗", "error", err)
			os.Exit(1)
		}
		if err := migrator.Up(); err != nil {
			logger.Error("資料庫遷移失敗", "error", err)
			os.Exit(1)
		}
		if err := migrator.Close(); err != nil {
			logger.Warn("關閉遷移管理器失敗", "error", err)
		}

		poolCfg, err := pgxpool.ParseConfig(databaseURL)
		if err != nil {
			logger.Error("解析資料庫連線字串失敗", "error", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = cfg.Postgres.MaxConns

		pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			logger.Error("連接資料庫失敗", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store = storage.NewPostgres(pool)
	}

	// 組裝對局會話：註冊表、狀態機、傳輸、超時排程
	registry := match.NewRegistry()
	engine := match.NewEngine(registry, store, cfg.Game.MovePeriod.Std(), cfg.Game.MaxGames, logger)
	hub := match.NewHub(engine, logger)
	scheduler := match.NewScheduler(engine, registry, store,
		cfg.Game.ScanInterval.Std(), cfg.Game.IdleInterval.Std(), logger)
	scheduler.Start()

	// 設置路由
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	// 啟動服務器
	go func() {
		logger.Info("XO 對戰服務器啟動",
			"port", cfg.Server.Port,
			"move_period", cfg.Game.MovePeriod.Std(),
			"max_games", cfg.Game.MaxGames)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 停止超時排程器，再關閉所有連線
	scheduler.Stop()
	hub.Stop()

	logger.Info("服務器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug", // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
