package model

import "time"

// NewsItem はアウトブレイク関連ニュースフィードの記事を表す。
// GUIDをキーとして重複なくUPSERTされる。
type NewsItem struct {
	ID          string    `bson:"_id"          json:"id"`
	GUID        string    `bson:"guid"         json:"-"`
	Title       string    `bson:"title"        json:"title"`
	Link        string    `bson:"link"         json:"link"`
	Summary     string    `bson:"summary"      json:"summary"`
	Source      string    `bson:"source"       json:"source"`
	PublishedAt time.Time `bson:"published_at" json:"published_at"`
	FetchedAt   time.Time `bson:"fetched_at"   json:"-"`
}

// NewsSource は巡回対象のニュースフィードを表す。
// ワーカーがメモリ上で巡回状態を管理する。
type NewsSource struct {
	// SourceURL は設定された入力URL。フィード本体でもHTMLページでもよい。
	SourceURL string

	// FeedURL は自動検出で解決したフィードURL。初回解決まで空。
	FeedURL string

	Title        string
	ETag         string
	LastModified string

	// 連続失敗回数。バックオフ判定に使用する。
	ConsecutiveErrors int
	NextFetchAt       time.Time

	// Stopped が真のソースは以降の巡回から除外される。
	Stopped   bool
	LastError string
}
