package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hitoshi/epimap/internal/model"
)

// loadTimeout はリモートスナップショット取得のタイムアウト。
const loadTimeout = 30 * time.Second

// maxSnapshotSize はスナップショットの最大サイズ（32MiB）。
const maxSnapshotSize = 32 << 20

// SafeClientFactory はSSRF防止機能付きHTTPクライアントの生成インターフェース。
type SafeClientFactory interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// LoadFile はローカルファイルから予測スナップショットをパースする。
func LoadFile(path string) ([]model.PredictionPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions file: %w", err)
	}
	return parse(data)
}

// LoadURL はMLパイプラインが公開するURLから予測スナップショットを取得する。
// 取得にはSSRF防止機能付きのHTTPクライアントを使用する。
func LoadURL(ctx context.Context, rawURL string, guard SafeClientFactory) ([]model.PredictionPoint, error) {
	if err := guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("predictions URL rejected: %w", err)
	}

	client := guard.NewSafeClient(loadTimeout, maxSnapshotSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create predictions request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predictions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predictions fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions response: %w", err)
	}
	return parse(data)
}

// parse はスナップショットJSONをパースする。
func parse(data []byte) ([]model.PredictionPoint, error) {
	var points []model.PredictionPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to parse predictions: %w", err)
	}
	return points, nil
}
