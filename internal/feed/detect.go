package feed

import (
	"mime"
	"strings"
)

// Format はレスポンスボディから推定したフィード形式。
type Format string

const (
	FormatRSS     Format = "rss"
	FormatRDF     Format = "rdf"
	FormatAtom    Format = "atom"
	FormatUnknown Format = "unknown"
)

// feedContentTypes はフィードとして認識するContent-Typeのリスト。
var feedContentTypes = map[string]Format{
	"application/rss+xml":  FormatRSS,
	"application/atom+xml": FormatAtom,
	"application/rdf+xml":  FormatRDF,
}

// sniffSize はルート要素の判定に読む先頭バイト数。
// XMLプロローグやスタイルシート指定の後ろにルート要素が来ても届く長さにしている。
const sniffSize = 4096

// DetectFormat はContent-Typeとボディ先頭からフィード形式を推定する。
// Content-Typeが汎用（text/xmlやtext/html）の場合はボディのルート要素で判定する。
func DetectFormat(contentType string, body []byte) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	if f, ok := feedContentTypes[strings.ToLower(mediaType)]; ok {
		return f
	}

	n := len(body)
	if n > sniffSize {
		n = sniffSize
	}
	prefix := strings.ToLower(string(body[:n]))

	switch {
	case strings.Contains(prefix, "<rss"):
		return FormatRSS
	case strings.Contains(prefix, "<rdf:rdf"):
		return FormatRDF
	case strings.Contains(prefix, "<feed"):
		return FormatAtom
	default:
		return FormatUnknown
	}
}
