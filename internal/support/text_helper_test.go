package support

import (
	"testing"
	"unicode/utf8"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "log=admin", want: "log=admin"},
		{name: "nul", in: "a\x00b", want: "ab"},
		{name: "invalid", in: "Mozilla \xff\xfe", want: "Mozilla �"},
		{name: "both", in: "x=\x00\xff", want: "x=�"},
		{name: "multibyte", in: "ünïcode", want: "ünïcode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanText(tt.in)
			if got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("CleanText(%q) returned invalid UTF-8", tt.in)
			}
		})
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "admin", limit: 64, want: "admin"},
		{name: "exact", in: "abcd", limit: 4, want: "abcd"},
		{name: "ascii cut", in: "abcdef", limit: 3, want: "abc"},
		{name: "rune boundary", in: "aé", limit: 2, want: "a"},
		{name: "zero", in: "abc", limit: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateUTF8(tt.in, tt.limit); got != tt.want {
				t.Fatalf("TruncateUTF8(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}
