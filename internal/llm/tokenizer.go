package llm

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// Tokenizer measures and trims prompt text. It approximates model tokens with
// prose word tokens, which overcounts slightly for sub-word vocabularies.
type Tokenizer struct{}

func NewTokenizer() *Tokenizer { return &Tokenizer{} }

func (t *Tokenizer) tokens(text string) ([]prose.Token, error) {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, err
	}
	return doc.Tokens(), nil
}

// Count returns the number of tokens in text, falling back to whitespace
// fields when the tokenizer rejects the input.
func (t *Tokenizer) Count(text string) int {
	toks, err := t.tokens(text)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(toks)
}

// Truncate keeps at most limit tokens of text, cutting at a word boundary.
func (t *Tokenizer) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	toks, err := t.tokens(text)
	if err != nil || len(toks) <= limit {
		if err != nil {
			return truncateFields(text, limit)
		}
		return text
	}

	// Walk the source to find where the limit-th token ends.
	offset := 0
	for _, tok := range toks[:limit] {
		idx := strings.Index(text[offset:], tok.Text)
		if idx < 0 {
			return truncateFields(text, limit)
		}
		offset += idx + len(tok.Text)
	}
	return strings.TrimSpace(text[:offset])
}

func truncateFields(text string, limit int) string {
	fields := strings.Fields(text)
	if len(fields) <= limit {
		return text
	}
	return strings.Join(fields[:limit], " ")
}
