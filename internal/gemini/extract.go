package gemini

import (
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("```(?:json|JSON)?")

// StripCodeFence はMarkdownのコードフェンスを除去して前後の空白を取り除く。
func StripCodeFence(text string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
}

// ExtractJSONArray はモデル出力からJSON配列部分を取り出す。
// コードフェンスを除去した上で、配列の前後に説明文が付いていれば切り落とす。
// 配列が見つからない場合はフェンス除去後の文字列をそのまま返す。
func ExtractJSONArray(text string) string {
	s := StripCodeFence(text)
	if strings.HasPrefix(s, "[") {
		return s
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
