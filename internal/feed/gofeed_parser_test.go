package feed

import "testing"

func TestGofeedParser_RSS(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Wellness Weekly</title>
    <link>https://wellness.example.com</link>
    <description>feed</description>
    <item>
      <title>Yoga for beginners</title>
      <link>https://wellness.example.com/yoga</link>
      <description><![CDATA[<p>Try <em>three</em> simple poses.</p><script>track()</script>]]></description>
      <media:content url="https://cdn.example.com/yoga.jpg" medium="image"/>
    </item>
    <item>
      <title>Inline image only</title>
      <link>https://wellness.example.com/inline</link>
      <description><![CDATA[<p><img src="https://cdn.example.com/inline.jpg"/>Eat greens.</p>]]></description>
    </item>
    <item>
      <title></title>
      <link>https://wellness.example.com/untitled</link>
      <description>dropped</description>
    </item>
  </channel>
</rss>`

	got := NewGofeedParser().Parse(raw)
	if len(got) != 2 {
		t.Fatalf("len(articles) = %d, want 2: %+v", len(got), got)
	}

	if got[0].Description != "Try three simple poses." {
		t.Errorf("Description = %q", got[0].Description)
	}
	if got[0].ImageURL != "https://cdn.example.com/yoga.jpg" {
		t.Errorf("ImageURL = %q", got[0].ImageURL)
	}
	if got[1].ImageURL != "https://cdn.example.com/inline.jpg" {
		t.Errorf("ImageURL = %q, want inline img", got[1].ImageURL)
	}
	if got[1].Description != "Eat greens." {
		t.Errorf("Description = %q", got[1].Description)
	}
}

func TestGofeedParser_Atom(t *testing.T) {
	raw := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Outbreak News</title>
  <id>urn:feed</id>
  <updated>2025-01-01T00:00:00Z</updated>
  <entry>
    <title>Measles vaccine drive</title>
    <link rel="alternate" href="https://news.example.org/measles"/>
    <id>urn:uuid:2</id>
    <updated>2025-01-01T00:00:00Z</updated>
    <summary>Clinics open this weekend.</summary>
  </entry>
</feed>`

	got := NewGofeedParser().Parse(raw)
	if len(got) != 1 {
		t.Fatalf("len(articles) = %d, want 1", len(got))
	}
	if got[0].Link != "https://news.example.org/measles" {
		t.Errorf("Link = %q", got[0].Link)
	}
	if got[0].Description != "Clinics open this weekend." {
		t.Errorf("Description = %q", got[0].Description)
	}
}

// gofeedが受け付けない文書は正規表現抽出器で処理する。
func TestGofeedParser_FallsBackToRegex(t *testing.T) {
	raw := `garbage before the feed <item><title>Flu spreads in city</title><link>https://x/1</link><description>Outbreak reported</description></item>`

	got := NewGofeedParser().Parse(raw)
	if len(got) != 1 {
		t.Fatalf("len(articles) = %d, want 1 via regex fallback", len(got))
	}
	if got[0].Title != "Flu spreads in city" {
		t.Errorf("Title = %q", got[0].Title)
	}
}

func TestGofeedParser_EmptyInput(t *testing.T) {
	if got := NewGofeedParser().Parse(""); len(got) != 0 {
		t.Errorf("Parse(\"\") = %+v, want empty", got)
	}
}
