// Package newsfetch はアウトブレイクニュースフィードのバックグラウンド巡回を提供する。
// スケジューラ、フェッチャー、リトライ/バックオフ戦略を含む。
package newsfetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/epimap/internal/model"
)

// SourceFetcherService はソースフェッチの実行インターフェース。
type SourceFetcherService interface {
	// Fetch は指定ソースをフェッチし、結果に応じてソース状態を更新する。
	Fetch(ctx context.Context, source *model.NewsSource) error
}

// Scheduler はニュースソース巡回のスケジューリングと並列制御を行う。
// 設定されたソースリストをメモリ上で管理し、semaphoreパターンで
// 最大並列数を制御しながらフェッチを実行する。
type Scheduler struct {
	mu             sync.Mutex
	sources        []*model.NewsSource
	fetcher        SourceFetcherService
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// sourceURLsの各エントリが1ソースになる。NextFetchAtはゼロ値のため
// 初回サイクルで全ソースが巡回対象になる。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	sourceURLs []string,
	fetcher SourceFetcherService,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	sources := make([]*model.NewsSource, 0, len(sourceURLs))
	for _, u := range sourceURLs {
		sources = append(sources, &model.NewsSource{SourceURL: u})
	}

	return &Scheduler{
		sources:        sources,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ニュース巡回スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("source_count", len(s.sources)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ニュース巡回スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は巡回対象ソースを1回抽出し、並列でフェッチを実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	due := s.dueForFetch(time.Now())
	if len(due) == 0 {
		s.logger.Info("巡回対象のニュースソースはありません")
		return
	}

	s.logger.Info("ニュース巡回サイクルを開始します",
		slog.Int("source_count", len(due)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, source := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(src *model.NewsSource) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.fetcher.Fetch(ctx, src); err != nil {
				s.logger.Error("ニュースソースのフェッチに失敗しました",
					slog.String("source_url", src.SourceURL),
					slog.String("error", err.Error()),
				)
			}
		}(source)
	}

	wg.Wait()

	s.logger.Info("ニュース巡回サイクルが完了しました",
		slog.Int("source_count", len(due)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// dueForFetch は巡回期限が到来した未停止ソースを返す。
func (s *Scheduler) dueForFetch(now time.Time) []*model.NewsSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*model.NewsSource
	for _, source := range s.sources {
		if source.Stopped {
			continue
		}
		if source.NextFetchAt.After(now) {
			continue
		}
		due = append(due, source)
	}
	return due
}

// Sources は全ソースの現在状態のコピーを返す。
func (s *Scheduler) Sources() []model.NewsSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]model.NewsSource, 0, len(s.sources))
	for _, source := range s.sources {
		snapshot = append(snapshot, *source)
	}
	return snapshot
}
