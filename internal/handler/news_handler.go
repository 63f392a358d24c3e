package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/epimap/internal/model"
)

const (
	defaultNewsLimit = 20
	maxNewsLimit     = 100
)

// NewsRepoInterface はニュースハンドラーが必要とするリポジトリインターフェース。
type NewsRepoInterface interface {
	ListRecent(ctx context.Context, limit int) ([]model.NewsItem, error)
}

// NewsHandler はアウトブレイクニュースのHTTPハンドラー。
type NewsHandler struct {
	repo   NewsRepoInterface
	logger *slog.Logger
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(repo NewsRepoInterface, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{repo: repo, logger: logger}
}

// List は公開日時の降順で直近のニュース記事を返す。
// limitのデフォルトは20、上限は100。不正な値はデフォルトに丸める。
// GET /api/news?limit=
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultNewsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxNewsLimit)
		}
	}

	items, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list news items", slog.String("error", err.Error()))
		writeInternalError(w)
		return
	}
	if items == nil {
		items = []model.NewsItem{}
	}

	writeJSON(w, http.StatusOK, items)
}
