package security

import (
	"strings"
	"testing"
)

func TestTextStripper_Strip(t *testing.T) {
	s := NewTextStripper()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"プレーンテキスト", "Drink more water", "Drink more water"},
		{"CDATAマーカー", "<![CDATA[Walking daily helps]]>", "Walking daily helps"},
		{"タグ除去", "<p>Sleep <strong>matters</strong></p>", "Sleep matters"},
		{"エンティティ復号", "Fruit &amp; vegetables", "Fruit & vegetables"},
		{"エスケープ済みHTML", "&lt;p&gt;Escaped &lt;b&gt;tags&lt;/b&gt;&lt;/p&gt;", "Escaped tags"},
		{"CDATA内HTML", "<![CDATA[<p>Yoga <img src=\"https://x/y.jpg\"> poses</p>]]>", "Yoga poses"},
		{"空白の畳み込み", "  line1\n\n\tline2   ", "line1 line2"},
		{"scriptの中身も除去", "ok<script>alert(1)</script>", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Strip(tt.input)
			if got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextStripper_NoMarkupRemains(t *testing.T) {
	s := NewTextStripper()

	inputs := []string{
		`<div class="a"><a href="https://example.com" onclick="x()">link</a></div>`,
		`&lt;iframe src="https://evil.example"&gt;&lt;/iframe&gt;text`,
	}

	for _, in := range inputs {
		got := s.Strip(in)
		if strings.Contains(got, "<") && strings.Contains(got, ">") {
			t.Errorf("Strip(%q) = %q, should not contain markup", in, got)
		}
	}
}
