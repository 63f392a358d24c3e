package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SanitizerService は外部由来テキストのサニタイズ機能を定義する。
// ニュース記事の要約と症状レポートの自由記述の保存前に使用される。
type SanitizerService interface {
	// SanitizeSummary はニュース要約のHTMLをサニタイズする。
	// 基本的な整形タグのみを通過させ、script等の危険なタグと
	// on*イベント属性を除去する。同一入力には常に同一出力を返す。
	SanitizeSummary(rawHTML string) string

	// SanitizePlainText は入力から全てのHTMLタグを除去し、
	// 前後の空白をトリムしたプレーンテキストを返す。
	SanitizePlainText(raw string) string
}

type sanitizer struct {
	summaryPolicy *bluemonday.Policy
	strictPolicy  *bluemonday.Policy
}

// NewSanitizer はSanitizerServiceの新しいインスタンスを生成する。
//
// 要約ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, strong, em
//   - aタグはhref属性のみ許可し、rel="noreferrer noopener"を強制付与
//   - 相対URLは不許可
//
// 自由記述にはタグを一切許可しないStrictPolicyを使用する。
func NewSanitizer() *sanitizer {
	summary := bluemonday.NewPolicy()
	summary.AllowElements("p", "br", "ul", "ol", "li", "blockquote", "strong", "em")
	summary.AllowAttrs("href").OnElements("a")
	summary.AllowStandardURLs()
	summary.AllowRelativeURLs(false)
	summary.RequireNoReferrerOnLinks(true)

	return &sanitizer{
		summaryPolicy: summary,
		strictPolicy:  bluemonday.StrictPolicy(),
	}
}

// SanitizeSummary はニュース要約のHTMLをサニタイズする。
func (s *sanitizer) SanitizeSummary(rawHTML string) string {
	return s.summaryPolicy.Sanitize(rawHTML)
}

// SanitizePlainText は全てのHTMLタグを除去したプレーンテキストを返す。
func (s *sanitizer) SanitizePlainText(raw string) string {
	return strings.TrimSpace(s.strictPolicy.Sanitize(raw))
}
