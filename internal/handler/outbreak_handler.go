package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/epimap/internal/model"
)

// OutbreakRepoInterface はアウトブレイクハンドラーが必要とするリポジトリインターフェース。
type OutbreakRepoInterface interface {
	ListAll(ctx context.Context) ([]model.Outbreak, error)
	Upsert(ctx context.Context, outbreak model.Outbreak) error
}

// OutbreakHandler はアウトブレイクレコードのHTTPハンドラー。
type OutbreakHandler struct {
	repo   OutbreakRepoInterface
	logger *slog.Logger
}

// NewOutbreakHandler はOutbreakHandlerを生成する。
func NewOutbreakHandler(repo OutbreakRepoInterface, logger *slog.Logger) *OutbreakHandler {
	return &OutbreakHandler{repo: repo, logger: logger}
}

// List は全アウトブレイクレコードを返す。
// GET /api/outbreaks
func (h *OutbreakHandler) List(w http.ResponseWriter, r *http.Request) {
	outbreaks, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list outbreaks", slog.String("error", err.Error()))
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, outbreaks)
}

// upsertOutbreakRequest はPOST /api/outbreaksのリクエストボディ。
type upsertOutbreakRequest struct {
	Region string  `json:"region"`
	Risk   float64 `json:"risk"`
}

// Upsert はregionをキーとしてリスクスコアをUPSERTする。
// POST /api/outbreaks
func (h *OutbreakHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertOutbreakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid body"})
		return
	}

	if req.Region == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Region is required"})
		return
	}

	outbreak := model.Outbreak{Region: req.Region, Risk: req.Risk}
	if err := h.repo.Upsert(r.Context(), outbreak); err != nil {
		h.logger.Error("failed to upsert outbreak",
			slog.String("region", req.Region),
			slog.String("error", err.Error()),
		)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
