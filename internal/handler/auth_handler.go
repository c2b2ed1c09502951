package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/trainchecker/internal/guard"
	"github.com/hitoshi/trainchecker/internal/model"
	"github.com/hitoshi/trainchecker/internal/view"
)

// registrationNotice は登録成功後にログイン画面へ表示する文言。
const registrationNotice = "Registration successful. Please sign in."

// Authenticator は認証ハンドラーが必要とするAuth APIのインターフェース。
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, confirmPassword string) error
}

// AuthHandler はログイン・登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	auth     Authenticator
	renderer Renderer
	logger   *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(auth Authenticator, renderer Renderer, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, renderer: renderer, logger: logger}
}

// LoginPage はログイン画面を表示する。ログイン済みの場合はメイン画面へ誘導する。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	_, state := currentSession(r)
	if state.IsAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderPage(w, h.logger, h.renderer, http.StatusOK, view.PageLogin, view.LoginPage{
		Layout: layoutFor(r, "Sign In", state),
	})
}

// Login はフォームの資格情報でログインし、成功時にセッションを認証済みにする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	store, state := currentSession(r)
	if store == nil {
		h.logger.Error("login attempted without session")
		renderPage(w, h.logger, h.renderer, http.StatusInternalServerError, view.PageLogin, view.LoginPage{
			Layout: layoutFor(r, "Sign In", state),
			Email:  email,
			Error:  internalErrorMessage,
		})
		return
	}

	token, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		h.logger.Info("login failed",
			slog.String("email", email),
			slog.String("code", errorCode(err)),
		)
		renderPage(w, h.logger, h.renderer, formStatus(err), view.PageLogin, view.LoginPage{
			Layout: layoutFor(r, "Sign In", state),
			Email:  email,
			Error:  userMessage(err),
		})
		return
	}

	store.Login(r.Context(), token, email)
	h.logger.Info("user logged in", slog.String("email", email))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterPage は登録画面を表示する。
// GET /register
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	_, state := currentSession(r)
	renderPage(w, h.logger, h.renderer, http.StatusOK, view.PageRegister, view.RegisterPage{
		Layout: layoutFor(r, "Register", state),
	})
}

// Register はアカウントを作成する。成功してもログインはせず、通知付きのログイン画面を表示する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	_, state := currentSession(r)

	if err := h.auth.Register(r.Context(), email, password, confirm); err != nil {
		h.logger.Info("registration failed",
			slog.String("email", email),
			slog.String("code", errorCode(err)),
		)
		renderPage(w, h.logger, h.renderer, formStatus(err), view.PageRegister, view.RegisterPage{
			Layout: layoutFor(r, "Register", state),
			Email:  email,
			Error:  userMessage(err),
		})
		return
	}

	h.logger.Info("user registered", slog.String("email", email))
	renderPage(w, h.logger, h.renderer, http.StatusOK, view.PageLogin, view.LoginPage{
		Layout: layoutFor(r, "Sign In", state),
		Email:  email,
		Notice: registrationNotice,
	})
}

// Logout はセッションを破棄してログイン画面へ誘導する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if store, state := currentSession(r); store != nil {
		store.Logout(r.Context())
		if state.IsAuthenticated {
			h.logger.Info("user logged out", slog.String("email", state.UserEmail))
		}
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func errorCode(err error) string {
	if apiErr, ok := model.AsAPIError(err); ok {
		return apiErr.Code
	}
	return model.ErrCodeInternal
}
