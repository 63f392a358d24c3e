// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/epimap/internal/model"
)

// OutbreakRepository はアウトブレイクレコードの永続化インターフェース。
type OutbreakRepository interface {
	// ListAll は全アウトブレイクレコードを取得する。
	ListAll(ctx context.Context) ([]model.Outbreak, error)

	// Upsert はregionをキーとしてリスクスコアをUPSERTする。
	// 既存レコードのリスクは上書きされる。
	Upsert(ctx context.Context, outbreak model.Outbreak) error
}

// SymptomRepository は症状レポートの永続化インターフェース。
type SymptomRepository interface {
	// Create は症状レポートを保存し、採番した識別子を返す。
	// タイムスタンプと識別子はストア側で割り当てる。
	Create(ctx context.Context, report *model.SymptomReport) (string, error)
}

// NewsRepository はアウトブレイクニュース記事の永続化インターフェース。
type NewsRepository interface {
	// UpsertItems は記事をGUIDをキーとして冪等にUPSERTし、新規作成件数を返す。
	UpsertItems(ctx context.Context, items []model.NewsItem) (int, error)

	// ListRecent は公開日時の降順で直近の記事を取得する。
	ListRecent(ctx context.Context, limit int) ([]model.NewsItem, error)
}
