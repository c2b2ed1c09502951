package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はストレージ疎通確認の上限時間。
const healthCheckTimeout = 2 * time.Second

// Pinger はヘルスチェック対象のインターフェース。
type Pinger interface {
	Ping(ctx context.Context) error
}

type sessionResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	UserEmail       string `json:"userEmail"`
}

// SessionState は復元後のセッション状態をJSONで返す。トークンは含めない。
// GET /api/session
func SessionState(w http.ResponseWriter, r *http.Request) {
	_, state := currentSession(r)
	writeJSON(w, http.StatusOK, sessionResponse{
		IsAuthenticated: state.IsAuthenticated,
		IsLoading:       state.IsLoading,
		UserEmail:       state.UserEmail,
	})
}

// NewHealthHandler はストレージへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(p Pinger, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
