package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trainchecker/internal/guard"
	"github.com/hitoshi/trainchecker/internal/middleware"
	"github.com/hitoshi/trainchecker/internal/session"
	"github.com/hitoshi/trainchecker/internal/storage"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Storage           storage.Store
	SessionOptions    session.Options
	ClientConfig      middleware.ClientConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Guard             *guard.Guard

	// 外部API
	Auth   Authenticator
	Trains TrainLooker

	Renderer Renderer

	// MetricsHandler がnilの場合は/metricsを公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Client → Session → CSRF
//
// /healthと/metricsはブラウザ識別子とセッションを必要としないため、Clientより前で分岐する。
// 保護ルートにはさらにルートガードと一般レート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))

	r.Get("/health", NewHealthHandler(deps.Storage, logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.Auth, deps.Renderer, logger)
	trainHandler := NewTrainHandler(deps.Trains, deps.Renderer, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientMiddleware(deps.ClientConfig))
		r.Use(middleware.NewSessionMiddleware(deps.Storage, logger, deps.SessionOptions))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Get("/login", authHandler.LoginPage)
		r.Get("/register", authHandler.RegisterPage)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)

		r.Route("/api/session", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
			r.Get("/", SessionState)
			r.Options("/", func(w http.ResponseWriter, r *http.Request) {})
		})
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: RateLimit(General) → Guard
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(deps.Guard.Middleware(guard.RedirectToLogin))

			r.Get("/", trainHandler.Index)
			r.Get("/search", trainHandler.Search)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(deps.Guard.Middleware(guard.RespondUnauthorized))

			r.Get("/api/trains/{origin}/to/{destination}", trainHandler.LookupAPI)
		})
	})

	return r
}
