package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// --- モック定義 ---

// mockGuard は検証を常に通過させ、素のHTTPクライアントを返す。
type mockGuard struct {
	validateErr error
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	return m.validateErr
}

func (m *mockGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func TestDetector_IsDirectFeed(t *testing.T) {
	d := NewDetector(&mockGuard{})

	tests := []struct {
		name        string
		contentType string
		body        string
		want        bool
	}{
		{"rss content type", "application/rss+xml", "", true},
		{"atom content type", "application/atom+xml; charset=utf-8", "", true},
		{"generic xml with rss root", "text/xml", `<?xml version="1.0"?><rss version="2.0"></rss>`, true},
		{"generic xml with rdf root", "application/xml", `<rdf:RDF xmlns="http://purl.org/rss/1.0/"></rdf:RDF>`, true},
		{"generic xml with atom root", "text/xml", `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`, true},
		{"generic xml non feed", "text/xml", `<?xml version="1.0"?><data></data>`, false},
		{"html", "text/html", "<html></html>", false},
		{"empty body generic xml", "text/xml", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.IsDirectFeed(tt.contentType, []byte(tt.body)); got != tt.want {
				t.Errorf("IsDirectFeed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_ParseFeedLinks(t *testing.T) {
	d := NewDetector(&mockGuard{})

	htmlBody := `<html><head>
		<link rel="alternate" type="application/rss+xml" title="Outbreak RSS" href="/feed.xml">
		<link rel="alternate" type="application/atom+xml" title="Outbreak Atom" href="https://other.example.org/atom.xml">
		<link rel="stylesheet" href="/style.css">
		<link rel="alternate" type="text/html" href="/mobile">
	</head><body>
		<link rel="alternate" type="application/rss+xml" href="/in-body.xml">
	</body></html>`

	got := d.ParseFeedLinks([]byte(htmlBody), "https://health.example.com/news")
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	if got[0].URL != "https://health.example.com/feed.xml" {
		t.Errorf("relative href not resolved: %q", got[0].URL)
	}
	if got[0].Atom {
		t.Error("first candidate should be RSS")
	}
	if got[1].URL != "https://other.example.org/atom.xml" || !got[1].Atom {
		t.Errorf("second candidate = %+v", got[1])
	}
}

func TestDetector_SelectBest(t *testing.T) {
	d := NewDetector(&mockGuard{})

	tests := []struct {
		name       string
		candidates []Candidate
		inputURL   string
		wantURL    string
	}{
		{
			name:       "empty returns nil",
			candidates: nil,
			inputURL:   "https://a.example.com",
			wantURL:    "",
		},
		{
			name: "same host wins over atom",
			candidates: []Candidate{
				{URL: "https://other.example.org/atom.xml", Atom: true},
				{URL: "https://a.example.com/rss.xml", Atom: false},
			},
			inputURL: "https://a.example.com/news",
			wantURL:  "https://a.example.com/rss.xml",
		},
		{
			name: "atom wins within same host",
			candidates: []Candidate{
				{URL: "https://a.example.com/rss.xml", Atom: false},
				{URL: "https://a.example.com/atom.xml", Atom: true},
			},
			inputURL: "https://a.example.com/news",
			wantURL:  "https://a.example.com/atom.xml",
		},
		{
			name: "first wins on tie",
			candidates: []Candidate{
				{URL: "https://a.example.com/one.xml"},
				{URL: "https://a.example.com/two.xml"},
			},
			inputURL: "https://a.example.com/news",
			wantURL:  "https://a.example.com/one.xml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.SelectBest(tt.candidates, tt.inputURL)
			if tt.wantURL == "" {
				if got != nil {
					t.Errorf("SelectBest() = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.URL != tt.wantURL {
				t.Errorf("SelectBest() = %+v, want URL %q", got, tt.wantURL)
			}
		})
	}
}

func TestDetector_Resolve_DirectFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<rss version="2.0"></rss>`))
	}))
	defer server.Close()

	d := NewDetector(&mockGuard{})
	got, err := d.Resolve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != server.URL {
		t.Errorf("Resolve() = %q, want %q", got, server.URL)
	}
}

func TestDetector_Resolve_HTMLAutodiscovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><link rel="alternate" type="application/rss+xml" href="/outbreaks.xml"></head><body></body></html>`))
	}))
	defer server.Close()

	d := NewDetector(&mockGuard{})
	got, err := d.Resolve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != server.URL+"/outbreaks.xml" {
		t.Errorf("Resolve() = %q, want %q", got, server.URL+"/outbreaks.xml")
	}
}

func TestDetector_Resolve_NoFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>plain page</title></head></html>`))
	}))
	defer server.Close()

	d := NewDetector(&mockGuard{})
	if _, err := d.Resolve(context.Background(), server.URL); err == nil {
		t.Fatal("Resolve() = nil, want error")
	}
}

func TestDetector_Resolve_GuardRejects(t *testing.T) {
	d := NewDetector(&mockGuard{validateErr: context.DeadlineExceeded})
	if _, err := d.Resolve(context.Background(), "http://10.0.0.1/feed"); err == nil {
		t.Fatal("Resolve() = nil, want error")
	}
}

func TestDetector_Resolve_EmptyURL(t *testing.T) {
	d := NewDetector(&mockGuard{})
	if _, err := d.Resolve(context.Background(), ""); err == nil {
		t.Fatal("Resolve(\"\") = nil, want error")
	}
}
