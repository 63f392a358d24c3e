package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/epimap/internal/model"
)

// --- モック定義 ---

type mockSymptomRepo struct {
	createFn func(ctx context.Context, report *model.SymptomReport) (string, error)
	saved    *model.SymptomReport
}

func (m *mockSymptomRepo) Create(ctx context.Context, report *model.SymptomReport) (string, error) {
	m.saved = report
	if m.createFn != nil {
		return m.createFn(ctx, report)
	}
	return "generated-id", nil
}

// passthroughSanitizer はHTMLタグ除去の代わりに目印を付けて呼び出しを検証できるようにする。
type passthroughSanitizer struct {
	stripped []string
}

func (s *passthroughSanitizer) SanitizePlainText(raw string) string {
	s.stripped = append(s.stripped, raw)
	return strings.ReplaceAll(raw, "<b>", "")
}

const validReportBody = `{
	"symptoms": ["fever", "cough"],
	"suspectedDisease": "flu",
	"severity": 2,
	"location": {"lat": 37.77, "lng": -122.41}
}`

func newSymptomHandler(repo *mockSymptomRepo) (*SymptomHandler, *passthroughSanitizer) {
	san := &passthroughSanitizer{}
	return NewSymptomHandler(repo, san, testLogger(), nil), san
}

// --- テスト ---

func TestSymptomHandler_Report_Succeeds(t *testing.T) {
	repo := &mockSymptomRepo{}
	h, _ := newSymptomHandler(repo)

	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodPost, "/symptoms", strings.NewReader(validReportBody)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp["success"] != true {
		t.Error("response should report success")
	}
	if resp["id"] != "generated-id" {
		t.Errorf("id = %v, want generated-id", resp["id"])
	}

	if repo.saved == nil {
		t.Fatal("report not saved")
	}
	if len(repo.saved.Symptoms) != 2 || repo.saved.Severity != 2 {
		t.Errorf("saved = %+v", repo.saved)
	}
}

func TestSymptomHandler_Report_SanitizesFreeText(t *testing.T) {
	repo := &mockSymptomRepo{}
	h, san := newSymptomHandler(repo)

	body := `{
		"symptoms": ["<b>fever</b>"],
		"suspectedDisease": "<b>flu</b>",
		"severity": 1,
		"location": {"lat": 0, "lng": 0}
	}`
	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodPost, "/symptoms", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if repo.saved.SuspectedDisease != "flu</b>" && repo.saved.SuspectedDisease != "flu" {
		// passthroughSanitizerは<b>のみ除去する
		t.Errorf("SuspectedDisease = %q, sanitizer not applied", repo.saved.SuspectedDisease)
	}
	if len(san.stripped) < 2 {
		t.Errorf("sanitizer called %d times, want symptoms and disease", len(san.stripped))
	}
}

func TestSymptomHandler_Report_IgnoresClientID(t *testing.T) {
	repo := &mockSymptomRepo{}
	h, _ := newSymptomHandler(repo)

	body := `{
		"id": "client-chosen",
		"symptoms": ["fever"],
		"suspectedDisease": "flu",
		"severity": 1,
		"location": {"lat": 0, "lng": 0}
	}`
	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodPost, "/symptoms", strings.NewReader(body)))

	if repo.saved.ID != "" {
		t.Errorf("saved ID = %q, client identifier should be discarded", repo.saved.ID)
	}
}

func TestSymptomHandler_Report_InvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not JSON", "plain text"},
		{"JSON null", `null`},
		{"JSON string", `"fever"`},
		{"JSON array", `["fever"]`},
		{"empty symptoms", `{"symptoms": [], "suspectedDisease": "flu", "severity": 1, "location": {"lat": 0, "lng": 0}}`},
		{"missing symptoms", `{"suspectedDisease": "flu", "severity": 1, "location": {"lat": 0, "lng": 0}}`},
		{"severity too high", `{"symptoms": ["fever"], "suspectedDisease": "flu", "severity": 4, "location": {"lat": 0, "lng": 0}}`},
		{"severity zero", `{"symptoms": ["fever"], "suspectedDisease": "flu", "severity": 0, "location": {"lat": 0, "lng": 0}}`},
		{"latitude out of range", `{"symptoms": ["fever"], "suspectedDisease": "flu", "severity": 1, "location": {"lat": 91, "lng": 0}}`},
		{"longitude out of range", `{"symptoms": ["fever"], "suspectedDisease": "flu", "severity": 1, "location": {"lat": 0, "lng": -181}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSymptomRepo{}
			h, _ := newSymptomHandler(repo)

			w := httptest.NewRecorder()
			h.Report(w, httptest.NewRequest(http.MethodPost, "/symptoms", strings.NewReader(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var resp map[string]string
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp["error"] != "Invalid body" {
				t.Errorf("error = %q, want %q", resp["error"], "Invalid body")
			}
		})
	}
}

func TestSymptomHandler_Report_RepoFailureReturns500(t *testing.T) {
	repo := &mockSymptomRepo{
		createFn: func(ctx context.Context, report *model.SymptomReport) (string, error) {
			return "", errors.New("db down")
		},
	}
	h, _ := newSymptomHandler(repo)

	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodPost, "/symptoms", strings.NewReader(validReportBody)))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
