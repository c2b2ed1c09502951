package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestLogFields は後続のミドルウェアがログ項目を書き戻すための入れ物。
// ロギングミドルウェアはチェーンの外側にあるため、コンテキスト経由で受け取る。
type requestLogFields struct {
	mu        sync.Mutex
	clientID  string
	userEmail string
}

var logFieldsContextKey = contextKey("log_fields")

func logFieldsFrom(ctx context.Context) *requestLogFields {
	f, _ := ctx.Value(logFieldsContextKey).(*requestLogFields)
	return f
}

func setLogClientID(ctx context.Context, clientID string) {
	if f := logFieldsFrom(ctx); f != nil {
		f.mu.Lock()
		f.clientID = clientID
		f.mu.Unlock()
	}
}

func setLogUserEmail(ctx context.Context, email string) {
	if f := logFieldsFrom(ctx); f != nil {
		f.mu.Lock()
		f.userEmail = email
		f.mu.Unlock()
	}
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、client_id、user_email（認証済みの場合）を含む。
// パスワードとトークンは出力しない。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			fields := &requestLogFields{}
			ctx := context.WithValue(r.Context(), logFieldsContextKey, fields)

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			fields.mu.Lock()
			if fields.clientID != "" {
				attrs = append(attrs, slog.String("client_id", fields.clientID))
			}
			if fields.userEmail != "" {
				attrs = append(attrs, slog.String("user_email", fields.userEmail))
			}
			fields.mu.Unlock()

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}
