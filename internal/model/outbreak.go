// Package model はドメインモデルを定義する。
package model

// Outbreak は地域ごとのアウトブレイクリスクスコアを表す。
// regionをキーとして1地域1レコードで保存される（書き込みはUPSERT）。
type Outbreak struct {
	Region string  `bson:"_id"  json:"id"`
	Risk   float64 `bson:"risk" json:"risk"`
}
