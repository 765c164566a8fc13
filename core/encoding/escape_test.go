package encoding

import (
	"html"
	"testing"
)

func TestEscapeXMLText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Pergament", "Pergament"},
		{"ampersand", "Gold & Silber", "Gold &amp; Silber"},
		{"less than", "a < b", "a &lt; b"},
		{"greater than", "a > b", "a &gt; b"},
		{"quotes preserved", `fol. "1r"`, `fol. "1r"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeXMLText(tt.input)
			if got != tt.want {
				t.Errorf("EscapeXMLText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeXMLAttr(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"double quotes", `say "hi"`, "say &quot;hi&quot;"},
		{"all chars", `<a b="c&d">`, "&lt;a b=&quot;c&amp;d&quot;&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeXMLAttr(tt.input)
			if got != tt.want {
				t.Errorf("EscapeXMLAttr(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Cod. 1 & 2", "Cod. 1 &amp; 2"},
		{`<b class="x">`, "&lt;b class=&quot;x&quot;&gt;"},
		{"日本語", "日本語"},
	}

	for _, tt := range tests {
		got := EscapeHTML(tt.input)
		if got != tt.want {
			t.Errorf("EscapeHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if back := html.UnescapeString(got); back != tt.input {
			t.Errorf("html.UnescapeString(%q) = %q, want %q", got, back, tt.input)
		}
	}
}
