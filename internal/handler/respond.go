// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/trainchecker/internal/middleware"
	"github.com/hitoshi/trainchecker/internal/model"
	"github.com/hitoshi/trainchecker/internal/session"
	"github.com/hitoshi/trainchecker/internal/view"
)

// Renderer は画面テンプレートの描画インターフェース。
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// apiStatus はJSON APIでのエラーコードとHTTPステータスの対応。
func apiStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingInput, model.ErrCodePasswordMismatch:
		return http.StatusBadRequest
	case model.ErrCodeNoServicesFound:
		return http.StatusNotFound
	case model.ErrCodeLookupFailed, model.ErrCodeMalformedService:
		return http.StatusBadGateway
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeTransient:
		return http.StatusServiceUnavailable
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// formStatus はフォーム送信エラーのHTTPステータスを返す。
// 登録失敗は上流が409を返した場合のみ409とする。
func formStatus(err error) int {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if apiErr.Code == model.ErrCodeRegistrationFailed {
		if model.UpstreamStatus(err) == http.StatusConflict {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}
	return apiStatus(apiErr)
}

const internalErrorMessage = "An internal error occurred."

// userMessage はユーザーに表示するメッセージを返す。APIError以外は詳細を隠す。
func userMessage(err error) string {
	if apiErr, ok := model.AsAPIError(err); ok {
		return apiErr.Message
	}
	return internalErrorMessage
}

// writeServiceError はエラーを統一エラーJSONに変換して書き込む。
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		logger.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteErrorResponse(w, apiStatus(apiErr), apiErr)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// renderPage はテンプレートをバッファに描画してからステータスとともに書き込む。
// 描画に失敗した場合は500を返す。
func renderPage(w http.ResponseWriter, logger *slog.Logger, renderer Renderer, status int, name string, data any) {
	var buf bytes.Buffer
	if err := renderer.Render(&buf, name, data); err != nil {
		logger.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// currentSession はリクエストのセッションと、復元完了後の状態を返す。
// セッションが無い場合やリクエストが終了した場合は未認証として扱う。
func currentSession(r *http.Request) (*session.Store, model.Session) {
	store, ok := session.FromContext(r.Context())
	if !ok {
		return nil, model.Session{}
	}
	state, err := store.Wait(r.Context())
	if err != nil {
		return store, model.Session{}
	}
	return store, state
}

func layoutFor(r *http.Request, title string, state model.Session) view.Layout {
	return view.Layout{
		Title:           title,
		CSRFToken:       middleware.CSRFTokenFromContext(r.Context()),
		UserEmail:       state.UserEmail,
		IsAuthenticated: state.IsAuthenticated,
	}
}
