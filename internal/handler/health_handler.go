package handler

import (
	"context"
	"net/http"
)

// HealthHandler は死活監視のHTTPハンドラー。
type HealthHandler struct {
	check func(ctx context.Context) error
}

// NewHealthHandler はHealthHandlerを生成する。
// checkにはデータベースのping関数を渡す。nilの場合は常に健全とみなす。
func NewHealthHandler(check func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{check: check}
}

// Check はデータベース疎通を確認して200/503を返す。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		if err := h.check(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
