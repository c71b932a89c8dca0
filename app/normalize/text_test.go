package normalize

import (
	"testing"
	"unicode/utf8"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "  just   text\n", "just text"},
		{"paragraphs", "<p>One.</p><p>Two.</p>", "One. Two."},
		{"entities", "Tom &amp; Jerry &lt;3", "Tom & Jerry <3"},
		{"line breaks", "a<br>b<br/>c", "a b c"},
		{"scripts removed", "<div>Keep<script>alert(1)</script></div><style>p{}</style>", "Keep"},
		{"inline markup", "An <a href=\"x\">inline</a> <em>link</em>", "An inline link"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.expected {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short enough", "hello world", 20, "hello world"},
		{"exact", "hello", 5, "hello"},
		{"word boundary", "alpha beta gamma delta", 12, "alpha beta…"},
		{"punctuation trimmed", "alpha beta, gamma delta", 13, "alpha beta…"},
		{"no spaces", "abcdefghijklmnop", 6, "abcde…"},
		{"disabled", "anything at all", 0, "anything at all"},
		{"multibyte", "日本語のテキストです", 5, "日本語の…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input, tt.max)
			if got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expected)
			}
			if tt.max > 0 && utf8.RuneCountInString(got) > tt.max {
				t.Errorf("Expected at most %d runes, got %d", tt.max, utf8.RuneCountInString(got))
			}
		})
	}
}

func TestMatchTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"New Transformer Beats GPT-4 on Benchmark", "new transformer beats gpt 4 on benchmark"},
		{"Café Déjà Vu", "cafe deja vu"},
		{"ＦＵＬＬＷＩＤＴＨ Title", "fullwidth title"},
		{"Straße", "strasse"},
		{"  What's   new?! ", "what s new"},
	}

	for _, tt := range tests {
		if got := MatchTitle(tt.input); got != tt.expected {
			t.Errorf("MatchTitle(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCleanTitle(t *testing.T) {
	if got := CleanTitle("  Rust &amp;\n Go  "); got != "Rust & Go" {
		t.Errorf("Expected 'Rust & Go', got %q", got)
	}
}
