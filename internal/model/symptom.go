package model

import "time"

// GeoPoint は地理座標を表す。
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat" validate:"min=-90,max=90"`
	Lng float64 `bson:"lng" json:"lng" validate:"min=-180,max=180"`
}

// SymptomReport はユーザーが送信した症状レポートを表す。
// IDとTimestampはサーバー側で採番され、作成後は不変。
type SymptomReport struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	Symptoms         []string  `bson:"symptoms"          json:"symptoms"         validate:"required,min=1,dive,required"`
	SuspectedDisease string    `bson:"suspected_disease" json:"suspectedDisease" validate:"required"`
	Severity         int       `bson:"severity"          json:"severity"         validate:"required,min=1,max=3"`
	Location         GeoPoint  `bson:"location"          json:"location"`
	Timestamp        time.Time `bson:"timestamp"         json:"timestamp"`
}
