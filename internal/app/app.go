package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/postbook/internal/auth"
	"github.com/hitoshi/postbook/internal/config"
	"github.com/hitoshi/postbook/internal/database"
	"github.com/hitoshi/postbook/internal/handler"
	"github.com/hitoshi/postbook/internal/logger"
	"github.com/hitoshi/postbook/internal/metrics"
	"github.com/hitoshi/postbook/internal/middleware"
	"github.com/hitoshi/postbook/internal/post"
	"github.com/hitoshi/postbook/internal/repository"
	"github.com/hitoshi/postbook/internal/user"
	"github.com/hitoshi/postbook/internal/web"
	"github.com/hitoshi/postbook/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateSuperuser:
		return runCreateSuperuser(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runServe はHTTPサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、APIとWeb画面を同じポートで提供する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	tokenRepo := repository.NewPostgresTokenRepo(db)

	// 4. ドメインサービスの初期化
	userService := user.NewService(userRepo, collector, user.Config{
		BcryptCost: cfg.BcryptCost,
		PageSize:   cfg.PageSize,
	})
	postService := post.NewService(postRepo, userRepo, collector, cfg.PageSize)
	authService := auth.NewService(userRepo, sessionRepo, tokenRepo, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 5. ルーターの構築
	authLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitAuth))
	defer authLimiter.Stop()

	webHandler, err := web.NewHandler(userService, postService, authService, web.CookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
		MaxAge: cfg.SessionMaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to build web handler: %w", err)
	}

	router := handler.NewRouter(&handler.RouterDeps{
		API: &handler.APIDeps{
			Authenticator:     authService,
			CORSAllowedOrigin: cfg.CORSAllowedOrigin,
			BaseURL:           cfg.BaseURL,
			AuthRateLimiter:   authLimiter,
			UserService:       userService,
			PostService:       postService,
			TokenService:      authService,
		},
		Web: web.NewRouter(&web.RouterDeps{
			Handler:       webHandler,
			Authenticator: authService,
			CSRF: middleware.CSRFConfig{
				Secret:         cfg.SecretKey,
				CookieSecure:   cfg.CookieSecure,
				CookieDomain:   cfg.CookieDomain,
				TrustedOrigins: cfg.CSRFTrustedOrigins,
			},
			AuthRateLimiter: authLimiter,
		}),
		Logger:         slog.Default(),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		HealthChecker:  db,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションの定期削除を実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	job := cleanup.NewSessionCleanupJob(
		repository.NewPostgresSessionRepo(db),
		metrics.NewCollector(registry),
		slog.Default(),
	)

	// ワーカーのメトリクスは専用ポートの/metricsで公開する
	metricsServer := newWorkerMetricsServer(":"+cfg.WorkerMetricsPort, registry)
	go func() {
		slog.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting", slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval))

	// キャンセルされるまでブロックする
	job.Start(ctx, cfg.SessionCleanupInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newWorkerMetricsServer はワーカー用の/metricsのみを提供するHTTPサーバーを返す。
func newWorkerMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// superuserFlags はcreatesuperuserサブコマンドの引数。
type superuserFlags struct {
	Email    string
	Name     string
	Password string
}

// parseSuperuserFlags はcreatesuperuserの引数を解析する。
// パスワードが指定されない場合は環境変数SUPERUSER_PASSWORDを使用する。
func parseSuperuserFlags(args []string) (superuserFlags, error) {
	var f superuserFlags
	fs := flag.NewFlagSet(string(CommandCreateSuperuser), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.Email, "email", "", "管理者のメールアドレス")
	fs.StringVar(&f.Name, "name", "", "管理者の名前")
	fs.StringVar(&f.Password, "password", "", "管理者のパスワード")
	if err := fs.Parse(args); err != nil {
		return f, fmt.Errorf("invalid arguments: %w", err)
	}
	if f.Password == "" {
		f.Password = os.Getenv("SUPERUSER_PASSWORD")
	}
	if f.Email == "" || f.Name == "" || f.Password == "" {
		return f, fmt.Errorf("--email, --name and --password (or SUPERUSER_PASSWORD) are required")
	}
	return f, nil
}

// runCreateSuperuser は管理者ユーザーを作成する。
func runCreateSuperuser(cfg *config.Config, args []string) error {
	f, err := parseSuperuserFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	userService := user.NewService(repository.NewPostgresUserRepo(db), nil, user.Config{
		BcryptCost: cfg.BcryptCost,
		PageSize:   cfg.PageSize,
	})
	if _, err := userService.CreateSuperuser(ctx, user.RegisterInput{
		Email:    f.Email,
		Name:     f.Name,
		Password: f.Password,
	}); err != nil {
		return fmt.Errorf("failed to create superuser: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
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
