package models

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"zero keeps all", "hello", 0, "hello"},
		// "é" is 2 bytes; cutting at 4 lands mid-rune and must back up.
		{"multibyte mid-rune", "caféteria", 4, "caf"},
		{"multibyte on boundary", "caféteria", 5, "café"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Truncate(tc.in, tc.n)
			if got != tc.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("invalid UTF-8: %q", got)
			}
		})
	}
}

func TestTruncateLongMultibyte(t *testing.T) {
	s := strings.Repeat("日本語テキスト", 100)
	for n := 1; n < 30; n++ {
		got := Truncate(s, n)
		if len(got) > n {
			t.Fatalf("Truncate(_, %d) kept %d bytes", n, len(got))
		}
		if !utf8.ValidString(got) {
			t.Fatalf("invalid UTF-8 at n=%d: %q", n, got)
		}
	}
}
