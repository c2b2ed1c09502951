package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/trainchecker/internal/session"
	"github.com/hitoshi/trainchecker/internal/storage"
)

// NewSessionMiddleware はリクエストごとにセッションを生成し、
// ブラウザのクライアントストレージからの復元を別ゴルーチンで開始するミドルウェアを返す。
// セッションはsession.FromContextで取り出せる。
// ブラウザ識別子が無いリクエストにはセッションを付与しない（ルートガードは未認証として扱う）。
func NewSessionMiddleware(base storage.Store, logger *slog.Logger, opts session.Options) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := ClientIDFromContext(r.Context())
			if err != nil {
				logger.Warn("session skipped: no client ID",
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			store := session.New(
				storage.Scoped(base, clientID),
				logger.With(slog.String("client_id", clientID)),
				opts,
			)
			go store.Restore(r.Context())

			ctx := session.NewContext(r.Context(), store)
			next.ServeHTTP(w, r.WithContext(ctx))

			if state := store.State(); state.IsAuthenticated {
				setLogUserEmail(r.Context(), state.UserEmail)
			}
		})
	}
}
