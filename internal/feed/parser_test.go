package feed

import (
	"strings"
	"testing"

	"github.com/hitoshi/healthtrends/internal/config"
	"github.com/hitoshi/healthtrends/internal/model"
)

func TestParseArticles_ExampleItem(t *testing.T) {
	raw := `<item><title>Flu spreads in city</title><link>https://x/1</link><description>Outbreak reported</description></item>`

	got := ParseArticles(raw)
	if len(got) != 1 {
		t.Fatalf("len(articles) = %d, want 1", len(got))
	}

	want := model.Article{
		Title:       "Flu spreads in city",
		Link:        "https://x/1",
		Description: "Outbreak reported",
	}
	if got[0] != want {
		t.Errorf("article = %+v, want %+v", got[0], want)
	}
}

func TestParseArticles_RSS(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Wellness Weekly</title>
    <link>https://wellness.example.com</link>
    <item>
      <title><![CDATA[5 Morning Stretches & Why They Work]]></title>
      <link>https://wellness.example.com/stretches</link>
      <description><![CDATA[<p>Start your day with <b>gentle</b> movement.</p>]]></description>
      <media:content url="https://cdn.example.com/stretch.jpg" medium="image"/>
    </item>
    <item>
      <title>Hydration basics</title>
      <link>https://wellness.example.com/water</link>
      <description>Drink water &amp; eat fruit.</description>
      <enclosure url="https://cdn.example.com/water.png" type="image/png" length="100"/>
    </item>
    <item>
      <title>No description here</title>
      <link>https://wellness.example.com/empty</link>
    </item>
  </channel>
</rss>`

	got := ParseArticles(raw)
	if len(got) != 2 {
		t.Fatalf("len(articles) = %d, want 2: %+v", len(got), got)
	}

	if got[0].Title != "5 Morning Stretches & Why They Work" {
		t.Errorf("Title = %q", got[0].Title)
	}
	if got[0].Description != "Start your day with gentle movement." {
		t.Errorf("Description = %q", got[0].Description)
	}
	if got[0].ImageURL != "https://cdn.example.com/stretch.jpg" {
		t.Errorf("ImageURL = %q", got[0].ImageURL)
	}
	if got[1].Description != "Drink water & eat fruit." {
		t.Errorf("Description = %q", got[1].Description)
	}
	if got[1].ImageURL != "https://cdn.example.com/water.png" {
		t.Errorf("ImageURL = %q", got[1].ImageURL)
	}
}

func TestParseArticles_Atom(t *testing.T) {
	raw := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Outbreak News</title>
  <entry xml:lang="en">
    <title type="html">Dengue cases rise</title>
    <link rel="self" href="https://news.example.org/api/1"/>
    <link rel="alternate" type="text/html" href="https://news.example.org/dengue"/>
    <id>urn:uuid:1225c695</id>
    <summary type="html">&lt;p&gt;Health officials &lt;img src="https://img.example.org/mosquito.jpg"&gt; warn residents.&lt;/p&gt;</summary>
  </entry>
  <entry>
    <title>Only an id</title>
    <id>https://news.example.org/by-id</id>
    <content type="text">Content body used as description</content>
  </entry>
</feed>`

	got := ParseArticles(raw)
	if len(got) != 2 {
		t.Fatalf("len(articles) = %d, want 2: %+v", len(got), got)
	}

	if got[0].Link != "https://news.example.org/dengue" {
		t.Errorf("Link = %q, want alternate link", got[0].Link)
	}
	if got[0].Description != "Health officials warn residents." {
		t.Errorf("Description = %q", got[0].Description)
	}
	if got[0].ImageURL != "https://img.example.org/mosquito.jpg" {
		t.Errorf("ImageURL = %q", got[0].ImageURL)
	}
	if got[1].Link != "https://news.example.org/by-id" {
		t.Errorf("Link = %q, want id fallback", got[1].Link)
	}
	if got[1].Description != "Content body used as description" {
		t.Errorf("Description = %q", got[1].Description)
	}
}

func TestParseBlock_LinkFallbackOrder(t *testing.T) {
	p := NewRegexParser()

	tests := []struct {
		name  string
		block string
		want  string
	}{
		{
			name:  "linkテキスト優先",
			block: `<title>t</title><link>https://a/1</link><guid>https://a/guid</guid><description>d</description>`,
			want:  "https://a/1",
		},
		{
			name:  "空のlinkはguidにフォールバック",
			block: `<title>t</title><link>  </link><guid isPermaLink="true">https://a/guid</guid><description>d</description>`,
			want:  "https://a/guid",
		},
		{
			name:  "Atomのhrefはguidより優先",
			block: `<title>t</title><link href="https://a/href"/><guid>https://a/guid</guid><description>d</description>`,
			want:  "https://a/href",
		},
		{
			name:  "idは最後の候補",
			block: `<title>t</title><id>https://a/id</id><description>d</description>`,
			want:  "https://a/id",
		},
		{
			name:  "CDATAのlink",
			block: `<title>t</title><link><![CDATA[https://a/cdata?x=1&y=2]]></link><description>d</description>`,
			want:  "https://a/cdata?x=1&y=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := p.ParseBlock(tt.block)
			if !ok {
				t.Fatalf("ParseBlock returned false for %q", tt.block)
			}
			if a.Link != tt.want {
				t.Errorf("Link = %q, want %q", a.Link, tt.want)
			}
		})
	}
}

func TestParseBlock_MissingFieldsDropped(t *testing.T) {
	p := NewRegexParser()

	blocks := []string{
		`<link>https://a/1</link><description>d</description>`,
		`<title>t</title><description>d</description>`,
		`<title>t</title><link>https://a/1</link>`,
		`<title><![CDATA[]]></title><link>https://a/1</link><description>d</description>`,
		`<title>t</title><link>https://a/1</link><description><![CDATA[<img src="https://a/i.jpg">]]></description>`,
	}

	for _, b := range blocks {
		if a, ok := p.ParseBlock(b); ok {
			t.Errorf("ParseBlock(%q) = %+v, want dropped", b, a)
		}
	}
}

// どんな入力でもパニックせず、完全な記事だけを返す。
func TestParseArticles_MalformedInput(t *testing.T) {
	inputs := []string{
		"",
		"not xml at all",
		"<item>",
		"<item><title>unterminated",
		"</item><item></item>",
		"<rss><channel><item><title>a</title><link>b</link>",
		strings.Repeat("<item>", 1000),
		"<item><title>\x00\xff\xfe</title><link>https://x/bin</link><description>\xc3\x28</description></item>",
		"<entry><title>t</title><link href=''/><description>d</description></entry>",
	}

	for _, in := range inputs {
		got := ParseArticles(in)
		for _, a := range got {
			if !a.Valid() {
				t.Errorf("ParseArticles(%q) returned invalid article %+v", in, a)
			}
		}
	}
}

func TestParseArticles_TruncatedDocumentKeepsCompleteBlocks(t *testing.T) {
	raw := `<rss><channel>
<item><title>First</title><link>https://x/1</link><description>one</description></item>
<item><title>Second</title><link>https://x/2</link><descrip`

	got := ParseArticles(raw)
	if len(got) != 1 || got[0].Link != "https://x/1" {
		t.Errorf("articles = %+v, want only the complete first item", got)
	}
}

func TestParseArticles_DocumentOrder(t *testing.T) {
	var b strings.Builder
	for _, id := range []string{"c", "a", "b"} {
		b.WriteString("<item><title>" + id + "</title><link>https://x/" + id + "</link><description>d</description></item>")
	}

	got := ParseArticles(b.String())
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"c", "a", "b"} {
		if got[i].Title != want {
			t.Errorf("articles[%d].Title = %q, want %q", i, got[i].Title, want)
		}
	}
}

func TestNewParser_SelectsImplementation(t *testing.T) {
	if _, ok := NewParser(config.FeedParserRegex).(*RegexParser); !ok {
		t.Error("regex mode should return *RegexParser")
	}
	if _, ok := NewParser(config.FeedParserGofeed).(*GofeedParser); !ok {
		t.Error("gofeed mode should return *GofeedParser")
	}
	if _, ok := NewParser("unknown").(*RegexParser); !ok {
		t.Error("unknown mode should fall back to *RegexParser")
	}
}
