package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	cdataPattern      = regexp.MustCompile(`<!\[CDATA\[|\]\]>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// TextStripper はフィード由来のHTML断片をプレーンテキストに変換する。
// bluemondayのStrictPolicyは全タグを除去するため、返却値にマークアップは残らない。
// 並行利用しても安全。
type TextStripper struct {
	policy *bluemonday.Policy
}

// NewTextStripper はTextStripperを生成する。
func NewTextStripper() *TextStripper {
	return &TextStripper{policy: bluemonday.StrictPolicy()}
}

// Strip はCDATAマーカーとタグを除去し、エンティティを復号して空白を畳み込む。
// エスケープされたHTML（&lt;p&gt;...）も一度復号してからタグ除去する。
func (s *TextStripper) Strip(raw string) string {
	if raw == "" {
		return ""
	}

	text := cdataPattern.ReplaceAllString(raw, "")
	text = html.UnescapeString(text)
	text = s.policy.Sanitize(text)
	// StrictPolicyは出力を再エスケープするため、もう一度復号する
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
