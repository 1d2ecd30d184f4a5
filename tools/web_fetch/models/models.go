package models

import "unicode/utf8"

type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Byline      string `json:"byline"`
	PublishedAt string `json:"published_at"`
	Text        string `json:"text"`
	Status      int    `json:"status"`
	FetchMS     int    `json:"fetch_ms"`
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 rune, backing
// up past any partial encoding at the cut point.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
