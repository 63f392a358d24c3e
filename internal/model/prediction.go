package model

// PredictionPoint は外部MLパイプラインが生成した地点ごとの疾病リスク予測を表す。
// バックエンドは起動時にスナップショットとして読み込むのみで、変更しない。
type PredictionPoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Risk    float64 `json:"risk"`
	Disease string  `json:"disease"`
	Region  string  `json:"region"`
}
