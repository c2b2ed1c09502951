// Package guard は保護ページへの遷移可否を判定するルートガードを提供する。
package guard

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/trainchecker/internal/metrics"
	"github.com/hitoshi/trainchecker/internal/middleware"
	"github.com/hitoshi/trainchecker/internal/model"
	"github.com/hitoshi/trainchecker/internal/session"
)

// LoginPath はログイン画面のパス。
const LoginPath = "/login"

// Decision はルートガードの判定結果。
type Decision int

const (
	// Defer はセッション復元中のため、保護ページもリダイレクトも出さない。
	Defer Decision = iota
	// Allow は保護ページの表示を許可する。
	Allow
	// Redirect はログイン画面へ誘導する。
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Defer:
		return "defer"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decide はセッション状態から判定を行う。
func Decide(s model.Session) Decision {
	switch {
	case s.IsLoading:
		return Defer
	case s.IsAuthenticated:
		return Allow
	default:
		return Redirect
	}
}

// RedirectToLogin はログイン画面へ303でリダイレクトする。ページ用。
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// RespondUnauthorized は401と統一エラーJSONを返す。JSON API用。
func RespondUnauthorized(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// Guard は判定をHTTPミドルウェアとして適用する。
type Guard struct {
	metrics metrics.Recorder
	logger  *slog.Logger
}

// New はGuardを生成する。recがnilの場合はメトリクスを記録しない。
func New(rec metrics.Recorder, logger *slog.Logger) *Guard {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{metrics: rec, logger: logger}
}

// Middleware は認証済みのリクエストのみnextへ渡すミドルウェアを返す。
// 復元中であれば完了を待ってから判定し直す。待機中にリクエストが終了した場合は何も書き込まない。
// 拒否時のレスポンスはdeniedで決まる。
func (g *Guard) Middleware(denied http.HandlerFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, ok := session.FromContext(r.Context())
			if !ok {
				g.metrics.RecordGuardDecision(Redirect.String())
				denied(w, r)
				return
			}

			state := store.State()
			d := Decide(state)
			if d == Defer {
				var err error
				state, err = store.Wait(r.Context())
				if err != nil {
					g.metrics.RecordGuardDecision(Defer.String())
					g.logger.Debug("request ended while restoring session",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					return
				}
				d = Decide(state)
			}

			g.metrics.RecordGuardDecision(d.String())
			if d != Allow {
				denied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
