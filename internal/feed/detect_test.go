package feed

import "testing"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        Format
	}{
		{"RSSのContent-Type", "application/rss+xml; charset=utf-8", "", FormatRSS},
		{"AtomのContent-Type", "application/atom+xml", "", FormatAtom},
		{"text/xmlでRSSボディ", "text/xml", `<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`, FormatRSS},
		{"text/xmlでAtomボディ", "text/xml", `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`, FormatAtom},
		{"RDFボディ", "application/xml", `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"></rdf:RDF>`, FormatRDF},
		{"Content-Typeなし", "", `<RSS><channel/></RSS>`, FormatRSS},
		{"HTMLページ", "text/html", `<!DOCTYPE html><html><body>hi</body></html>`, FormatUnknown},
		{"不正なContent-Type", ";;;", `<rss>`, FormatRSS},
		{"空ボディ", "text/plain", "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.contentType, []byte(tt.body)); got != tt.want {
				t.Errorf("DetectFormat(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}
