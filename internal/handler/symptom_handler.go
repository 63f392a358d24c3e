package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/epimap/internal/metrics"
	"github.com/hitoshi/epimap/internal/model"
)

// SymptomRepoInterface は症状レポートハンドラーが必要とするリポジトリインターフェース。
type SymptomRepoInterface interface {
	Create(ctx context.Context, report *model.SymptomReport) (string, error)
}

// TextSanitizer は自由記述フィールドのサニタイズインターフェース。
type TextSanitizer interface {
	SanitizePlainText(raw string) string
}

// SymptomHandler は症状レポートのHTTPハンドラー。
type SymptomHandler struct {
	repo      SymptomRepoInterface
	sanitizer TextSanitizer
	validate  *validator.Validate
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewSymptomHandler はSymptomHandlerを生成する。
func NewSymptomHandler(repo SymptomRepoInterface, sanitizer TextSanitizer, logger *slog.Logger, collector metrics.MetricsCollector) *SymptomHandler {
	return &SymptomHandler{
		repo:      repo,
		sanitizer: sanitizer,
		validate:  validator.New(),
		logger:    logger,
		collector: collector,
	}
}

// Report は症状レポートを受理して保存する。
// タイムスタンプと識別子はサーバー側で採番する。
// POST /symptoms
func (h *SymptomHandler) Report(w http.ResponseWriter, r *http.Request) {
	var report model.SymptomReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid body"})
		return
	}

	if err := h.validate.Struct(&report); err != nil {
		h.logger.Warn("symptom report failed validation", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid body"})
		return
	}

	// 自由記述フィールドは保存前にサニタイズする
	report.SuspectedDisease = h.sanitizer.SanitizePlainText(report.SuspectedDisease)
	for i, s := range report.Symptoms {
		report.Symptoms[i] = h.sanitizer.SanitizePlainText(s)
	}

	// クライアント指定の識別子は無視する
	report.ID = ""

	id, err := h.repo.Create(r.Context(), &report)
	if err != nil {
		h.logger.Error("failed to save symptom report", slog.String("error", err.Error()))
		writeInternalError(w)
		return
	}

	if h.collector != nil {
		h.collector.RecordSymptomReport()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      id,
	})
}
