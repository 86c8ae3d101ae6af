package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// postprocess cleans a raw completion: echoed "Answer:" prefix, markup,
// terminal punctuation, then length.
func postprocess(text string, maxChars int) string {
	text = stripAnswerPrefix(strings.TrimSpace(text))
	if strings.Contains(text, "<") {
		text = stripHTML(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = ensureTerminalPunctuation(text)
	return truncateRunes(text, maxChars)
}

func stripAnswerPrefix(text string) string {
	const prefix = "answer:"
	if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
		return strings.TrimSpace(text[len(prefix):])
	}
	return text
}

func stripHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p, li, div, h1, h2, h3, h4, tr").AppendHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func ensureTerminalPunctuation(text string) string {
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}

func truncateRunes(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}
