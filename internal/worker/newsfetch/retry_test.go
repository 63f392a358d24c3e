package newsfetch

import (
	"testing"
	"time"

	"github.com/hitoshi/epimap/internal/model"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FetchResult
	}{
		{200, FetchResultOK},
		{304, FetchResultNotModified},
		{401, FetchResultStop},
		{403, FetchResultStop},
		{404, FetchResultStop},
		{410, FetchResultStop},
		{429, FetchResultBackoff},
		{500, FetchResultBackoff},
		{503, FetchResultBackoff},
		{201, FetchResultUnknown},
		{301, FetchResultUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		errors int
		want   time.Duration
	}{
		{0, 30 * time.Minute},
		{1, time.Hour},
		{2, 2 * time.Hour},
		{3, 4 * time.Hour},
		{4, 8 * time.Hour},
		{5, 12 * time.Hour},
		{10, 12 * time.Hour},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.errors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}

func TestApplyStop(t *testing.T) {
	source := &model.NewsSource{SourceURL: "https://example.com/feed"}

	ApplyStop(source, "gone")

	if !source.Stopped {
		t.Error("source should be stopped")
	}
	if source.LastError != "gone" {
		t.Errorf("LastError = %q, want %q", source.LastError, "gone")
	}
}

func TestApplyBackoff(t *testing.T) {
	source := &model.NewsSource{ConsecutiveErrors: 1}
	before := time.Now()

	ApplyBackoff(source, "server error")

	if source.ConsecutiveErrors != 2 {
		t.Errorf("ConsecutiveErrors = %d, want 2", source.ConsecutiveErrors)
	}
	// 2回目の失敗なので1時間のバックオフ
	wantMin := before.Add(time.Hour)
	if source.NextFetchAt.Before(wantMin) {
		t.Errorf("NextFetchAt = %v, want >= %v", source.NextFetchAt, wantMin)
	}
	if source.Stopped {
		t.Error("backoff should not stop the source")
	}
}

func TestApplySuccess(t *testing.T) {
	source := &model.NewsSource{
		ConsecutiveErrors: 3,
		LastError:         "old error",
	}
	before := time.Now()

	ApplySuccess(source, 30*time.Minute)

	if source.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", source.ConsecutiveErrors)
	}
	if source.LastError != "" {
		t.Errorf("LastError = %q, want empty", source.LastError)
	}
	if source.NextFetchAt.Before(before.Add(30 * time.Minute)) {
		t.Errorf("NextFetchAt = %v, want >= %v", source.NextFetchAt, before.Add(30*time.Minute))
	}
}

func TestApplyParseFailure_BelowThreshold(t *testing.T) {
	source := &model.NewsSource{}

	ApplyParseFailure(source, "invalid XML")

	if source.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", source.ConsecutiveErrors)
	}
	if source.Stopped {
		t.Error("single parse failure should not stop the source")
	}
}

func TestApplyParseFailure_ReachesThreshold(t *testing.T) {
	source := &model.NewsSource{ConsecutiveErrors: 9}

	ApplyParseFailure(source, "invalid XML")

	if !source.Stopped {
		t.Error("source should stop after 10 consecutive parse failures")
	}
}
