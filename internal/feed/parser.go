package feed

import (
	"html"
	"regexp"
	"strings"

	"github.com/hitoshi/healthtrends/internal/model"
	"github.com/hitoshi/healthtrends/internal/security"
)

// Parser はフィード文書から記事を抽出する。
// 実装はどんな入力に対してもパニックせず、抽出できない場合は空スライスを返す。
type Parser interface {
	Parse(raw string) []model.Article
}

// 正規表現抽出器で使うパターン。
// 開始タグの属性を許容し、要素名は大文字小文字を区別しない。
var (
	blockPattern       = regexp.MustCompile(`(?is)<(?:item|entry)(?:\s[^>]*)?>(.*?)</(?:item|entry)\s*>`)
	titlePattern       = regexp.MustCompile(`(?is)<title(?:\s[^>]*)?>(.*?)</title\s*>`)
	linkTextPattern    = regexp.MustCompile(`(?is)<link(\s[^>]*)?>(.*?)</link\s*>`)
	linkHrefPattern    = regexp.MustCompile(`(?is)<link\s([^>]*)>`)
	guidPattern        = regexp.MustCompile(`(?is)<guid(?:\s[^>]*)?>(.*?)</guid\s*>`)
	idPattern          = regexp.MustCompile(`(?is)<id(?:\s[^>]*)?>(.*?)</id\s*>`)
	descriptionPattern = regexp.MustCompile(`(?is)<description(?:\s[^>]*)?>(.*?)</description\s*>`)
	summaryPattern     = regexp.MustCompile(`(?is)<summary(?:\s[^>]*)?>(.*?)</summary\s*>`)
	contentPattern     = regexp.MustCompile(`(?is)<content(?:\s[^>]*)?>(.*?)</content\s*>`)
	encodedPattern     = regexp.MustCompile(`(?is)<content:encoded(?:\s[^>]*)?>(.*?)</content:encoded\s*>`)
	mediaURLPattern    = regexp.MustCompile(`(?is)<media:content\s[^>]*?url\s*=\s*["']([^"']+)["']`)
	enclosurePattern   = regexp.MustCompile(`(?is)<enclosure\s[^>]*?url\s*=\s*["']([^"']+)["']`)
	imgSrcPattern      = regexp.MustCompile(`(?is)<img\s[^>]*?src\s*=\s*["']([^"']+)["']`)
	hrefAttrPattern    = regexp.MustCompile(`(?is)\bhref\s*=\s*["']([^"']+)["']`)
	relAttrPattern     = regexp.MustCompile(`(?is)\brel\s*=\s*["']([^"']*)["']`)
)

// RegexParser は正規表現ベースの寛容な抽出器。
// 整形式でないXMLや途中で切れた文書からも、完結した<item>/<entry>ブロックを拾う。
type RegexParser struct {
	stripper *security.TextStripper
}

// NewRegexParser はRegexParserを生成する。
func NewRegexParser() *RegexParser {
	return &RegexParser{stripper: security.NewTextStripper()}
}

// Parse は文書順に<item>/<entry>ブロックを走査し、必須項目が揃った記事を返す。
func (p *RegexParser) Parse(raw string) []model.Article {
	matches := blockPattern.FindAllStringSubmatch(raw, -1)
	articles := make([]model.Article, 0, len(matches))
	for _, m := range matches {
		if a, ok := p.ParseBlock(m[1]); ok {
			articles = append(articles, a)
		}
	}
	return articles
}

// ParseBlock は1つの<item>/<entry>ブロックの中身から記事を組み立てる。
// タイトル・リンク・説明のいずれかが空の場合はfalseを返す。
func (p *RegexParser) ParseBlock(block string) (model.Article, bool) {
	a := model.Article{
		Title:       p.stripper.Strip(firstGroup(titlePattern, block)),
		Link:        extractLink(block),
		Description: p.stripper.Strip(firstNonEmpty(block, descriptionPattern, summaryPattern, contentPattern, encodedPattern)),
		ImageURL:    extractImage(block),
	}
	return a, a.Valid()
}

// ParseArticles は既定の正規表現抽出器で文書を解析する。
func ParseArticles(raw string) []model.Article {
	return NewRegexParser().Parse(raw)
}

// extractLink は<link>本文、Atomの<link href>、<guid>、<id>の順にリンクを探す。
func extractLink(block string) string {
	for _, m := range linkTextPattern.FindAllStringSubmatch(block, -1) {
		if strings.HasSuffix(strings.TrimSpace(m[1]), "/") {
			// 自己終了タグから次の</link>までを誤って拾った場合
			continue
		}
		if link := cleanText(m[2]); link != "" {
			return link
		}
	}

	if link := atomLinkHref(block); link != "" {
		return link
	}

	if link := cleanText(firstGroup(guidPattern, block)); link != "" {
		return link
	}
	return cleanText(firstGroup(idPattern, block))
}

// atomLinkHref はrel="alternate"またはrel省略のリンクを優先してhrefを返す。
func atomLinkHref(block string) string {
	var fallback string
	for _, m := range linkHrefPattern.FindAllStringSubmatch(block, -1) {
		attrs := m[1]
		href := hrefAttrPattern.FindStringSubmatch(attrs)
		if href == nil {
			continue
		}
		value := html.UnescapeString(strings.TrimSpace(href[1]))
		if value == "" {
			continue
		}

		rel := relAttrPattern.FindStringSubmatch(attrs)
		if rel == nil || strings.EqualFold(strings.TrimSpace(rel[1]), "alternate") {
			return value
		}
		if fallback == "" {
			fallback = value
		}
	}
	return fallback
}

// extractImage はmedia:content、enclosure、インラインimgの順に画像URLを探す。
// エスケープされたHTML内のimgも対象とする。
func extractImage(block string) string {
	for _, re := range []*regexp.Regexp{mediaURLPattern, enclosurePattern, imgSrcPattern} {
		if v := firstGroup(re, block); v != "" {
			return html.UnescapeString(strings.TrimSpace(v))
		}
	}
	if v := firstGroup(imgSrcPattern, html.UnescapeString(block)); v != "" {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// firstNonEmpty は空でない本文を持つ最初のパターンの値を返す。
func firstNonEmpty(block string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if v := firstGroup(re, block); strings.TrimSpace(cdataPattern.ReplaceAllString(v, "")) != "" {
			return v
		}
	}
	return ""
}

var cdataPattern = regexp.MustCompile(`<!\[CDATA\[|\]\]>`)

// cleanText はCDATAマーカーを除去してエンティティを復号する。
func cleanText(s string) string {
	s = cdataPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
