package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/epimap/internal/metrics"
	"github.com/hitoshi/epimap/internal/prediction"
)

// PredictionQuerier は予測スナップショットの問い合わせインターフェース。
type PredictionQuerier interface {
	Query(disease string) prediction.Result
}

// PredictionHandler はML予測スナップショットのHTTPハンドラー。
type PredictionHandler struct {
	service   PredictionQuerier
	collector metrics.MetricsCollector
}

// NewPredictionHandler はPredictionHandlerを生成する。
func NewPredictionHandler(service PredictionQuerier, collector metrics.MetricsCollector) *PredictionHandler {
	return &PredictionHandler{service: service, collector: collector}
}

// predictionMetadata はレスポンスのmetadataフィールド。
// diseases/regionsはフィルタに関係なく全データセットのラベル。
type predictionMetadata struct {
	Diseases []string `json:"diseases"`
	Regions  []string `json:"regions"`
	AvgRisk  float64  `json:"avgRisk"`
}

type predictionResponse struct {
	Success     bool               `json:"success"`
	Count       int                `json:"count"`
	Disease     string             `json:"disease"`
	Coordinates [][2]float64       `json:"coordinates"`
	Metadata    predictionMetadata `json:"metadata"`
}

// metricLabel はメトリクスラベルをスナップショットの既知疾病集合に正規化する。
// クエリ文字列をそのままラベルにすると任意のクライアントが系列を無制限に
// 増やせるため、既知の疾病と"all"以外は"other"に丸める。
func metricLabel(result prediction.Result) string {
	if strings.EqualFold(result.Disease, "all") {
		return "all"
	}
	for _, d := range result.Diseases {
		if strings.EqualFold(d, result.Disease) {
			return d
		}
	}
	return "other"
}

// Query は疾病フィルタ付きの予測問い合わせに応答する。
// GET /predictions?disease=
func (h *PredictionHandler) Query(w http.ResponseWriter, r *http.Request) {
	result := h.service.Query(r.URL.Query().Get("disease"))

	if h.collector != nil {
		h.collector.RecordPredictionQuery(metricLabel(result))
	}

	writeJSON(w, http.StatusOK, predictionResponse{
		Success:     true,
		Count:       len(result.Coordinates),
		Disease:     result.Disease,
		Coordinates: result.Coordinates,
		Metadata: predictionMetadata{
			Diseases: result.Diseases,
			Regions:  result.Regions,
			AvgRisk:  result.AvgRisk,
		},
	})
}
