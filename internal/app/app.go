// Package app は設定の読み込みから依存関係の組み立て、サーバーの起動までを担う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/trainchecker/internal/auth"
	"github.com/hitoshi/trainchecker/internal/config"
	"github.com/hitoshi/trainchecker/internal/database"
	"github.com/hitoshi/trainchecker/internal/guard"
	"github.com/hitoshi/trainchecker/internal/handler"
	"github.com/hitoshi/trainchecker/internal/logger"
	"github.com/hitoshi/trainchecker/internal/metrics"
	"github.com/hitoshi/trainchecker/internal/middleware"
	"github.com/hitoshi/trainchecker/internal/security"
	"github.com/hitoshi/trainchecker/internal/session"
	"github.com/hitoshi/trainchecker/internal/storage"
	"github.com/hitoshi/trainchecker/internal/trains"
	"github.com/hitoshi/trainchecker/internal/view"
)

// shutdownTimeout はグレースフルシャットダウンの上限時間。
const shutdownTimeout = 30 * time.Second

// envFile は起動時に読み込む.envファイル。存在しなくてもよい。
const envFile = ".env"

// Init はアプリケーションの初期化を行う。
// .envファイルと設定ファイル、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, configPath string) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの読み込み（既存の環境変数は上書きしない）
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	// 3. 設定の読み込み
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたレベルでログを再構成
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// openStorage は設定されたドライバーのクライアントストレージを開く。
// postgresの場合は未適用のマイグレーションも適用する。
func openStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverRedis:
		st, err := storage.NewRedis(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.StorageTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis storage connected", slog.String("addr", cfg.RedisAddr))
		return st, nil

	case config.StorageDriverPostgres:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return storage.NewPostgres(db), nil

	default:
		return storage.NewMemory(cfg.StorageTTL), nil
	}
}

// newUpstreamClient は上流API用のHTTPクライアントを生成する。
// SSRFガードが有効な場合はベースURLを検証し、そのポートのみ接続を許可する。
func newUpstreamClient(cfg *config.Config) (*http.Client, error) {
	clientCfg := security.UpstreamClientConfig{
		Timeout:   cfg.UpstreamTimeout,
		SSRFGuard: cfg.UpstreamSSRFGuard,
	}
	if cfg.UpstreamSSRFGuard {
		if err := security.ValidateBaseURL(cfg.TrainAPIBaseURL); err != nil {
			return nil, fmt.Errorf("TRAIN_API_BASE_URL rejected by SSRF guard: %w", err)
		}
		port, err := security.PortOf(cfg.TrainAPIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("TRAIN_API_BASE_URL: %w", err)
		}
		clientCfg.AllowedPorts = []int{port}
	}
	return security.NewUpstreamClient(clientCfg), nil
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 戻り値のstop関数はレート制限のクリーンアップを止める。
func newHandler(cfg *config.Config, st storage.Store, log *slog.Logger) (http.Handler, func(), error) {
	httpClient, err := newUpstreamClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, nil, err
	}

	reg := metrics.NewRegistry()
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewMessageSanitizer()

	gateway := auth.NewGateway(httpClient, cfg.TrainAPIBaseURL, log,
		auth.WithMetrics(collector),
		auth.WithSanitizer(sanitizer),
	)
	trainClient := trains.NewClient(httpClient, cfg.TrainAPIBaseURL, log,
		trains.WithMetrics(collector),
		trains.WithSanitizer(sanitizer),
	)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	deps := &handler.RouterDeps{
		Logger:  log,
		Storage: st,
		SessionOptions: session.Options{
			DiscardExpiredTokens: cfg.SessionDiscardExpiredTokens,
			Metrics:              collector,
		},
		ClientConfig: middleware.ClientConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.ClientCookieMaxAge,
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Guard:             guard.New(collector, log),
		Auth:              gateway,
		Trains:            trainClient,
		Renderer:          renderer,
	}
	if cfg.MetricsEnabled {
		deps.MetricsHandler = metrics.Handler(reg)
	}

	return handler.NewRouter(deps), rl.Stop, nil
}

// runServe はHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナル、もしくはctxの終了でグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	h, stop, err := newHandler(cfg, st, log)
	if err != nil {
		return err
	}
	defer stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("storage", cfg.StorageDriver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// runMigrate はclient_storageテーブルのマイグレーションを実行する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用。/healthにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, healthURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
