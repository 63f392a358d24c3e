package newsfetch

import (
	"fmt"
	"time"

	"github.com/hitoshi/epimap/internal/model"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop は巡回停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 12 * time.Hour
	// parseFailureThreshold はパース失敗による巡回停止の閾値。
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 304:
		return FetchResultNotModified
	case statusCode == 404 || statusCode == 410:
		return FetchResultStop
	case statusCode == 401 || statusCode == 403:
		return FetchResultStop
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplyStop はソースの巡回を停止し、理由を記録する。
func ApplyStop(source *model.NewsSource, reason string) {
	source.Stopped = true
	source.LastError = reason
}

// ApplyBackoff はソースにバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフで次回巡回時刻を設定する。
func ApplyBackoff(source *model.NewsSource, reason string) {
	source.ConsecutiveErrors++
	source.LastError = reason
	source.NextFetchAt = time.Now().Add(CalculateBackoff(source.ConsecutiveErrors - 1))
}

// ApplySuccess はフェッチ成功時にソース状態をリセットし、
// 次回巡回時刻を通常間隔で設定する。
func ApplySuccess(source *model.NewsSource, interval time.Duration) {
	source.ConsecutiveErrors = 0
	source.LastError = ""
	source.NextFetchAt = time.Now().Add(interval)
}

// ApplyParseFailure はパース失敗時に連続エラー回数をインクリメントする。
// 閾値に達した場合は巡回を停止する。
func ApplyParseFailure(source *model.NewsSource, reason string) {
	source.ConsecutiveErrors++
	source.LastError = fmt.Sprintf("パース失敗 (%d回連続): %s", source.ConsecutiveErrors, reason)

	if source.ConsecutiveErrors >= parseFailureThreshold {
		source.Stopped = true
		source.LastError = fmt.Sprintf("パース失敗が%d回連続したため巡回を停止しました: %s",
			source.ConsecutiveErrors, reason)
	}
}
