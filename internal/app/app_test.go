package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	// serverSelectionTimeoutMSを短くして接続失敗を早期検出する
	t.Setenv("MONGODB_URI", "mongodb://localhost:27099/?serverSelectionTimeoutMS=500")
	t.Setenv("GOOGLE_OAUTH_ID", "test-client-id")
	t.Setenv("GOOGLE_OAUTH_SECRET", "test-client-secret")
	t.Setenv("BACKEND_URL", "http://localhost:8080")
	t.Setenv("FRONTEND_URL", "http://localhost:3000")
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.FrontendURL != "http://localhost:3000" {
		t.Errorf("FrontendURL = %q, want http://localhost:3000", cfg.FrontendURL)
	}

	// slogのグローバルロガーがJSON出力に設定されていることを検証する
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("GOOGLE_OAUTH_ID", "")
	t.Setenv("GOOGLE_OAUTH_SECRET", "")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("FRONTEND_URL", "")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("GOOGLE_OAUTH_ID", "")
	t.Setenv("GOOGLE_OAUTH_SECRET", "")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("FRONTEND_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

// TestRun_ServeCommand_OpensDBConnection はserveコマンドがDB接続を試みることを検証する。
// テスト環境ではMongoDBが存在しないため、接続エラーが返ることを許容する。
func TestRun_ServeCommand_OpensDBConnection(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		// CI/ローカルにMongoDBがある場合のみ到達する。
		t.Log("Run(serve) succeeded - MongoDB is available in test environment")
	}
}

// TestRun_WorkerCommand_RequiresFeedURLs はフィードURL未設定のworkerがエラーを返すことを検証する。
func TestRun_WorkerCommand_RequiresFeedURLs(t *testing.T) {
	setTestEnv(t)
	t.Setenv("NEWS_FEED_URLS", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"worker"})
	if err == nil {
		t.Fatal("Run(worker) without NEWS_FEED_URLS should return error")
	}
}

func TestRun_HealthcheckCommand_FailsWithoutServer(t *testing.T) {
	// 未使用ポートを指定してヘルスチェックが失敗することを検証する
	t.Setenv("SERVER_PORT", "59999")

	var buf bytes.Buffer
	err := Run(&buf, []string{"healthcheck"})
	if err == nil {
		t.Fatal("Run(healthcheck) without a running server should return error")
	}
}
