package security

import (
	"strings"
	"testing"
)

func TestSanitizer_SanitizeSummary_RemovesScript(t *testing.T) {
	s := NewSanitizer()

	got := s.SanitizeSummary(`<p>Outbreak reported</p><script>alert("xss")</script>`)
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Errorf("script content survived: %q", got)
	}
	if !strings.Contains(got, "<p>Outbreak reported</p>") {
		t.Errorf("allowed tag removed: %q", got)
	}
}

func TestSanitizer_SanitizeSummary_RemovesEventAttributes(t *testing.T) {
	s := NewSanitizer()

	got := s.SanitizeSummary(`<p onclick="alert(1)">cases rising</p>`)
	if strings.Contains(got, "onclick") {
		t.Errorf("onclick attribute survived: %q", got)
	}
}

func TestSanitizer_SanitizeSummary_KeepsFormattingTags(t *testing.T) {
	s := NewSanitizer()

	input := `<p><strong>WHO</strong> update:</p><ul><li>region A</li><li>region B</li></ul>`
	got := s.SanitizeSummary(input)
	for _, tag := range []string{"<strong>", "<ul>", "<li>"} {
		if !strings.Contains(got, tag) {
			t.Errorf("tag %s removed: %q", tag, got)
		}
	}
}

func TestSanitizer_SanitizeSummary_AnchorGetsNoReferrer(t *testing.T) {
	s := NewSanitizer()

	got := s.SanitizeSummary(`<a href="https://example.com/report">report</a>`)
	if !strings.Contains(got, `rel="nofollow noreferrer noopener"`) &&
		!strings.Contains(got, "noreferrer") {
		t.Errorf("rel attribute missing: %q", got)
	}
	if !strings.Contains(got, `href="https://example.com/report"`) {
		t.Errorf("href removed: %q", got)
	}
}

func TestSanitizer_SanitizeSummary_Empty(t *testing.T) {
	s := NewSanitizer()

	if got := s.SanitizeSummary(""); got != "" {
		t.Errorf("SanitizeSummary(\"\") = %q, want \"\"", got)
	}
}

func TestSanitizer_SanitizeSummary_Idempotent(t *testing.T) {
	s := NewSanitizer()

	input := `<p>text</p><img src="https://example.com/x.png">`
	once := s.SanitizeSummary(input)
	twice := s.SanitizeSummary(once)
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

func TestSanitizer_SanitizePlainText_StripsAllTags(t *testing.T) {
	s := NewSanitizer()

	got := s.SanitizePlainText(`<b>fever</b> and <script>alert(1)</script>cough`)
	if strings.ContainsAny(got, "<>") {
		t.Errorf("tags survived: %q", got)
	}
	if !strings.Contains(got, "fever") || !strings.Contains(got, "cough") {
		t.Errorf("text content lost: %q", got)
	}
}

func TestSanitizer_SanitizePlainText_Trims(t *testing.T) {
	s := NewSanitizer()

	if got := s.SanitizePlainText("  headache  "); got != "headache" {
		t.Errorf("SanitizePlainText = %q, want %q", got, "headache")
	}
}
