package newsfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/epimap/internal/metrics"
	"github.com/hitoshi/epimap/internal/model"
	"github.com/hitoshi/epimap/internal/repository"
	"github.com/hitoshi/epimap/internal/security"
)

// userAgent はフィード取得時のUser-Agentヘッダ。
const userAgent = "Epimap/1.0 Outbreak Monitor"

// FeedResolver はソースURLからフィードURLを解決するインターフェース。
type FeedResolver interface {
	Resolve(ctx context.Context, inputURL string) (string, error)
}

// Fetcher は個別ニュースソースのHTTPフェッチとパースを行う。
// 初回フェッチ時のフィードURL自動検出、ETag/Last-Modifiedによる条件付きGET、
// gofeedによるパース、記事のサニタイズと保存を実行する。
type Fetcher struct {
	newsRepo    repository.NewsRepository
	resolver    FeedResolver
	guard       security.URLGuardService
	sanitizer   security.SanitizerService
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	interval    time.Duration
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	newsRepo repository.NewsRepository,
	resolver FeedResolver,
	guard security.URLGuardService,
	sanitizer security.SanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	interval time.Duration,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		newsRepo:    newsRepo,
		resolver:    resolver,
		guard:       guard,
		sanitizer:   sanitizer,
		collector:   collector,
		logger:      logger,
		interval:    interval,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch はソースをフェッチし、結果に応じてソース状態を更新する。
func (f *Fetcher) Fetch(ctx context.Context, source *model.NewsSource) error {
	start := time.Now()

	// 初回はフィードURLを自動検出する
	if source.FeedURL == "" {
		feedURL, err := f.resolver.Resolve(ctx, source.SourceURL)
		if err != nil {
			f.logger.Error("フィードURLの解決に失敗しました",
				slog.String("source_url", source.SourceURL),
				slog.String("error", err.Error()),
			)
			ApplyBackoff(source, fmt.Sprintf("フィードURL解決失敗: %s", err.Error()))
			f.collector.RecordNewsFetchFailure()
			return fmt.Errorf("フィードURLの解決に失敗: %w", err)
		}
		source.FeedURL = feedURL
	}

	if err := f.guard.ValidateURL(source.FeedURL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("feed_url", source.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyStop(source, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.collector.RecordNewsFetchFailure()
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := f.guard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if source.ETag != "" {
		req.Header.Set("If-None-Match", source.ETag)
	}
	if source.LastModified != "" {
		req.Header.Set("If-Modified-Since", source.LastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("feed_url", source.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(source, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		f.collector.RecordNewsFetchFailure()
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultNotModified:
		f.logger.Info("フィードは未変更です（304）",
			slog.String("feed_url", source.FeedURL),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		ApplySuccess(source, f.interval)
		f.collector.RecordNewsFetchSuccess()
		return nil

	case FetchResultStop:
		reason := fmt.Sprintf("HTTPステータス %d により巡回を停止しました", resp.StatusCode)
		f.logger.Warn("ニュースソースの巡回を停止します",
			slog.String("feed_url", source.FeedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		ApplyStop(source, reason)
		f.collector.RecordNewsFetchFailure()
		return nil

	case FetchResultBackoff:
		reason := fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode)
		f.logger.Warn("ニュースソースにバックオフを適用します",
			slog.String("feed_url", source.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", source.ConsecutiveErrors+1),
		)
		ApplyBackoff(source, reason)
		f.collector.RecordNewsFetchFailure()
		return nil

	case FetchResultOK:
		// 200: 以下で処理を続行

	default:
		ApplyBackoff(source, fmt.Sprintf("予期しないHTTPステータス: %d", resp.StatusCode))
		f.collector.RecordNewsFetchFailure()
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		ApplyBackoff(source, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		f.collector.RecordNewsFetchFailure()
		return nil
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		source.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		source.LastModified = lastMod
	}

	parsedFeed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", source.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyParseFailure(source, err.Error())
		f.collector.RecordNewsFetchFailure()
		// パース失敗はカウントして巡回を継続する
		return nil
	}

	if parsedFeed.Title != "" {
		source.Title = parsedFeed.Title
	}

	items := f.convertItems(parsedFeed.Items, source)
	created, err := f.newsRepo.UpsertItems(ctx, items)
	if err != nil {
		f.logger.Error("記事のUPSERTに失敗しました",
			slog.String("feed_url", source.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(source, fmt.Sprintf("記事UPSERT失敗: %s", err.Error()))
		f.collector.RecordNewsFetchFailure()
		return nil
	}

	ApplySuccess(source, f.interval)
	f.collector.RecordNewsFetchSuccess()
	f.collector.RecordNewsItemsUpserted(created)

	f.logger.Info("ニュースフィードのフェッチが完了しました",
		slog.String("feed_url", source.FeedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_created", created),
		slog.Int("items_total", len(items)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// convertItems はgofeedの記事をサニタイズ済みのmodel.NewsItemに変換する。
// GUIDもリンクもない記事はスキップする。
func (f *Fetcher) convertItems(items []*gofeed.Item, source *model.NewsSource) []model.NewsItem {
	now := time.Now()
	sourceName := source.Title
	if sourceName == "" {
		sourceName = hostOf(source.FeedURL)
	}

	converted := make([]model.NewsItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		link := item.Link
		if link == "" && strings.HasPrefix(guid, "http") {
			link = guid
		}

		converted = append(converted, model.NewsItem{
			ID:          uuid.NewString(),
			GUID:        guid,
			Title:       f.sanitizer.SanitizePlainText(item.Title),
			Link:        link,
			Summary:     f.sanitizer.SanitizeSummary(summary),
			Source:      sourceName,
			PublishedAt: publishedAt,
			FetchedAt:   now,
		})
	}
	return converted
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
