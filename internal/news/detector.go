// Package news はアウトブレイク関連ニュースフィードの検出と巡回を提供する。
package news

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/epimap/internal/security"
)

// userAgent はニュースフィード取得時のUser-Agentヘッダ。
const userAgent = "Epimap/1.0 Outbreak Monitor"

// Candidate はHTMLのheadタグから検出されたフィード候補を表す。
type Candidate struct {
	URL   string
	Atom  bool
	Title string
}

// Detector は設定されたソースURLがフィード本体かHTMLページかを判定し、
// HTMLページの場合はlink要素からフィードURLを自動検出する。
type Detector struct {
	guard security.URLGuardService
}

// NewDetector はDetectorの新しいインスタンスを生成する。
func NewDetector(guard security.URLGuardService) *Detector {
	return &Detector{guard: guard}
}

// feedContentTypes はフィードとして直接認識するContent-Type。
var feedContentTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// xmlContentTypes は汎用XML。ボディ解析でフィードかを判定する。
var xmlContentTypes = map[string]bool{
	"text/xml":        true,
	"application/xml": true,
}

// IsDirectFeed はContent-Typeとボディから、レスポンスがRSS/Atom
// フィードかどうかを判定する。
func (d *Detector) IsDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	if feedContentTypes[mediaType] {
		return true
	}
	if !xmlContentTypes[mediaType] || len(body) == 0 {
		return false
	}
	return looksLikeFeedXML(body)
}

// looksLikeFeedXML はXMLボディの先頭部分からRSS/Atomフィードかを判定する。
func looksLikeFeedXML(body []byte) bool {
	// プロローグとルート要素には先頭4KBで十分
	limit := min(len(body), 4096)
	prefix := strings.ToLower(string(body[:limit]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") &&
		strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// ParseFeedLinks はHTMLのheadタグからrel="alternate"のフィードリンクを
// 検出する。相対URLはbaseURLを基準に解決される。
func (d *Detector) ParseFeedLinks(htmlBody []byte, baseURL string) []Candidate {
	var candidates []Candidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			switch tagName {
			case "head":
				inHead = true
				continue
			case "body":
				// headを抜けたら以降は見ない
				return candidates
			}

			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				case "title":
					title = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			if !feedContentTypes[linkType] {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}

			candidates = append(candidates, Candidate{
				URL:   baseU.ResolveReference(ref).String(),
				Atom:  linkType == "application/atom+xml",
				Title: title,
			})

		case html.EndTagToken:
			if tn, _ := tokenizer.TagName(); string(tn) == "head" {
				return candidates
			}
		}
	}
}

// SelectBest は複数候補から最適なフィードを選択する。
// 優先順位: 同一ホスト > Atom > 記載順。
func (d *Detector) SelectBest(candidates []Candidate, inputURL string) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := hostOf(inputURL)
	bestIdx := 0
	bestScore := -1

	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == inputHost {
			score += 100
		}
		if c.Atom {
			score += 10
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return &candidates[bestIdx]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Resolve は設定されたソースURLからフィードURLを決定する。
// URL自体がフィードならそのまま返し、HTMLページなら
// headタグから検出したフィードURLを返す。
func (d *Detector) Resolve(ctx context.Context, inputURL string) (string, error) {
	if inputURL == "" {
		return "", fmt.Errorf("empty source URL")
	}
	if err := d.guard.ValidateURL(inputURL); err != nil {
		return "", fmt.Errorf("source URL rejected: %w", err)
	}

	const maxBodySize = 5 * 1024 * 1024
	client := d.guard.NewSafeClient(10*time.Second, maxBodySize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("source fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("source read failed: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if d.IsDirectFeed(contentType, body) {
		return inputURL, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return "", fmt.Errorf("no feed found at %s", inputURL)
	}

	best := d.SelectBest(d.ParseFeedLinks(body, inputURL), inputURL)
	if best == nil {
		return "", fmt.Errorf("no feed found at %s", inputURL)
	}
	return best.URL, nil
}
