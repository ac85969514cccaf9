package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/healthtrends/internal/config"
	"github.com/hitoshi/healthtrends/internal/model"
	"github.com/hitoshi/healthtrends/internal/security"
)

// GofeedParser はgofeedで文書を解析する抽出器。
// gofeedが文書を受け付けない場合は正規表現抽出器にフォールバックする。
type GofeedParser struct {
	fallback *RegexParser
	stripper *security.TextStripper
}

// NewGofeedParser はGofeedParserを生成する。
func NewGofeedParser() *GofeedParser {
	return &GofeedParser{
		fallback: NewRegexParser(),
		stripper: security.NewTextStripper(),
	}
}

// NewParser はモードに応じた抽出器を返す。未知のモードは正規表現抽出器とする。
func NewParser(mode config.FeedParserMode) Parser {
	if mode == config.FeedParserGofeed {
		return NewGofeedParser()
	}
	return NewRegexParser()
}

// Parse は文書を解析して必須項目が揃った記事を返す。
func (p *GofeedParser) Parse(raw string) []model.Article {
	parsed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		return p.fallback.Parse(raw)
	}

	articles := make([]model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		if a, ok := p.convert(item); ok {
			articles = append(articles, a)
		}
	}
	return articles
}

func (p *GofeedParser) convert(item *gofeed.Item) (model.Article, bool) {
	body := item.Description
	if strings.TrimSpace(body) == "" {
		body = item.Content
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(body))

	a := model.Article{
		Title: p.stripper.Strip(item.Title),
		Link:  itemLink(item),
	}
	if docErr == nil {
		doc.Find("script, style").Remove()
		a.Description = strings.Join(strings.Fields(doc.Text()), " ")
	} else {
		a.Description = p.stripper.Strip(body)
	}
	a.ImageURL = itemImage(item, doc)

	return a, a.Valid()
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	for _, l := range item.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return strings.TrimSpace(item.GUID)
}

// itemImage はmedia:content、enclosure、gofeedの画像、本文中のimgの順に画像URLを探す。
func itemImage(item *gofeed.Item, doc *goquery.Document) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, c := range media["content"] {
			if u := strings.TrimSpace(c.Attrs["url"]); u != "" {
				return u
			}
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.TrimSpace(enc.URL) != "" {
			return strings.TrimSpace(enc.URL)
		}
	}
	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		return strings.TrimSpace(item.Image.URL)
	}
	if doc != nil {
		if src, ok := doc.Find("img[src]").First().Attr("src"); ok {
			return strings.TrimSpace(src)
		}
	}
	return ""
}
