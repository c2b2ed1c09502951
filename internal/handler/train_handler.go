package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trainchecker/internal/model"
	"github.com/hitoshi/trainchecker/internal/view"
)

// TrainLooker は列車検索ハンドラーが必要とする検索インターフェース。
type TrainLooker interface {
	Lookup(ctx context.Context, originCode, destinationCode string) (*model.TrainQueryResult, error)
}

// TrainHandler は列車検索画面とJSON APIのHTTPハンドラー。
type TrainHandler struct {
	trains   TrainLooker
	renderer Renderer
	logger   *slog.Logger
}

// NewTrainHandler はTrainHandlerを生成する。
func NewTrainHandler(trains TrainLooker, renderer Renderer, logger *slog.Logger) *TrainHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainHandler{trains: trains, renderer: renderer, logger: logger}
}

// Index は検索フォームのみのメイン画面を表示する。
// GET /
func (h *TrainHandler) Index(w http.ResponseWriter, r *http.Request) {
	_, state := currentSession(r)
	renderPage(w, h.logger, h.renderer, http.StatusOK, view.PageMain, view.MainPage{
		Layout: layoutFor(r, "Train Checker", state),
	})
}

// Search は検索を実行し、結果・該当なし・エラーのいずれかを表示する。
// 該当なしはエラーではなく200の中立的な表示とする。
// GET /search?origin=&destination=
func (h *TrainHandler) Search(w http.ResponseWriter, r *http.Request) {
	_, state := currentSession(r)

	origin := r.URL.Query().Get("origin")
	destination := r.URL.Query().Get("destination")
	page := view.MainPage{
		Layout:      layoutFor(r, "Train Checker", state),
		Origin:      origin,
		Destination: destination,
	}

	result, err := h.trains.Lookup(r.Context(), origin, destination)
	status := http.StatusOK
	switch {
	case err == nil:
		page.Result = view.NewResultView(result)
	case model.HasCode(err, model.ErrCodeNoServicesFound):
		page.NoServices = true
	default:
		h.logger.Warn("train lookup failed",
			slog.String("origin", origin),
			slog.String("destination", destination),
			slog.String("error", err.Error()),
		)
		page.Error = userMessage(err)
		status = formStatus(err)
	}

	renderPage(w, h.logger, h.renderer, status, view.PageMain, page)
}

// LookupAPI は検索結果をJSONで返す。
// GET /api/trains/{origin}/to/{destination}
func (h *TrainHandler) LookupAPI(w http.ResponseWriter, r *http.Request) {
	origin := chi.URLParam(r, "origin")
	destination := chi.URLParam(r, "destination")

	result, err := h.trains.Lookup(r.Context(), origin, destination)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
