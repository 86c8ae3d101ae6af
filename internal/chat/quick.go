package chat

import "strings"

const (
	greetingReply = "Hello! I'm your crop assistant. Ask me about canopy cover, stress, yield or fertilizer."
	identityReply = "I'm an agronomy assistant. I read your latest drone analysis and answer questions about crop health."
	thanksReply   = "You're welcome! Let me know if you have more questions about your crops."
)

var phrases = map[string]string{
	"hello":          greetingReply,
	"hi":             greetingReply,
	"hey":            greetingReply,
	"good morning":   greetingReply,
	"good afternoon": greetingReply,
	"good evening":   greetingReply,

	"who are you":        identityReply,
	"what are you":       identityReply,
	"what can you do":    identityReply,
	"what do you do":     identityReply,
	"introduce yourself": identityReply,

	"thanks":            thanksReply,
	"thank you":         thanksReply,
	"thank you so much": thanksReply,
	"thx":               thanksReply,
}

// normalize case-folds, trims, collapses inner whitespace and drops trailing
// sentence punctuation.
func normalize(message string) string {
	s := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	return strings.TrimRight(s, "!?.")
}

// quickReply answers without the model when the message is a known phrase
// or mentions a quick topic.
func quickReply(normalized string, c Context) (string, bool) {
	if reply, ok := phrases[normalized]; ok {
		return reply, true
	}
	t, ok := matchTopic(normalized)
	if !ok || !t.quick {
		return "", false
	}
	if !c.HasData {
		return noDataPrefix + t.advice(c), true
	}
	return t.advice(c), true
}
