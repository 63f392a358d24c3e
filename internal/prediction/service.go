// Package prediction はMLパイプラインが生成した予測スナップショットの
// 読み込みと問い合わせを提供する。
package prediction

import (
	"math"
	"strings"

	"github.com/hitoshi/epimap/internal/model"
)

// filterAll は全疾病を意味するフィルタ値。
const filterAll = "all"

// Result は疾病フィルタ適用後の問い合わせ結果を表す。
type Result struct {
	// Disease は適用されたフィルタ（未指定時は "all"）。
	Disease string

	// Coordinates はフィルタ後の座標列 [lng, lat]。
	Coordinates [][2]float64

	// Diseases / Regions はフィルタに関係なく全データセットの相異なるラベル。
	Diseases []string
	Regions  []string

	// AvgRisk はフィルタ後サブセットの平均リスク（小数第3位で丸め）。
	// サブセットが空の場合は0。
	AvgRisk float64
}

// Service は起動時に1回パースした予測スナップショットを保持し、
// 疾病フィルタ付きの問い合わせに応答する。スナップショットは変更されない。
type Service struct {
	points   []model.PredictionPoint
	diseases []string
	regions  []string
}

// NewService は予測ポイント列からServiceを生成する。
// 相異なる疾病/地域ラベルは出現順で前計算する。
func NewService(points []model.PredictionPoint) *Service {
	s := &Service{
		points:   points,
		diseases: []string{},
		regions:  []string{},
	}

	seenDiseases := make(map[string]bool)
	seenRegions := make(map[string]bool)
	for _, p := range points {
		if !seenDiseases[p.Disease] {
			seenDiseases[p.Disease] = true
			s.diseases = append(s.diseases, p.Disease)
		}
		if !seenRegions[p.Region] {
			seenRegions[p.Region] = true
			s.regions = append(s.regions, p.Region)
		}
	}

	return s
}

// Len はスナップショット全体のポイント数を返す。
func (s *Service) Len() int {
	return len(s.points)
}

// Query は疾病フィルタを適用した問い合わせ結果を返す。
// フィルタは大文字小文字を区別しない完全一致。空文字列と"all"は無フィルタ。
func (s *Service) Query(disease string) Result {
	result := Result{
		Disease:     disease,
		Diseases:    s.diseases,
		Regions:     s.regions,
		Coordinates: [][2]float64{},
	}
	if disease == "" {
		result.Disease = filterAll
	}

	unfiltered := disease == "" || strings.EqualFold(disease, filterAll)

	var riskSum float64
	for _, p := range s.points {
		if !unfiltered && !strings.EqualFold(p.Disease, disease) {
			continue
		}
		result.Coordinates = append(result.Coordinates, [2]float64{p.Lng, p.Lat})
		riskSum += p.Risk
	}

	if n := len(result.Coordinates); n > 0 {
		result.AvgRisk = math.Round(riskSum/float64(n)*1000) / 1000
	}

	return result
}
