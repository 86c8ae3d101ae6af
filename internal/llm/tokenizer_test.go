package llm

import (
	"strings"
	"testing"
)

func TestTokenizerCount(t *testing.T) {
	tok := NewTokenizer()

	if n := tok.Count("The canopy is healthy."); n != 5 {
		t.Fatalf("expected 5 tokens, got %d", n)
	}
	if n := tok.Count(""); n != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", n)
	}
}

func TestTokenizerTruncate(t *testing.T) {
	tok := NewTokenizer()

	text := "The canopy is healthy."
	if got := tok.Truncate(text, 3); got != "The canopy is" {
		t.Fatalf("got %q", got)
	}
	if got := tok.Truncate(text, 50); got != text {
		t.Fatalf("short text should be unchanged, got %q", got)
	}
	if got := tok.Truncate(text, 0); got != "" {
		t.Fatalf("zero limit should empty the text, got %q", got)
	}

	long := strings.Repeat("stress ", 600)
	if n := tok.Count(tok.Truncate(long, 512)); n > 512 {
		t.Fatalf("truncated prompt still has %d tokens", n)
	}
}
