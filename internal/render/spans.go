package render

import "strings"

// SpanKind classifies a visual-guide span.
type SpanKind string

const (
	SpanPlain  SpanKind = "plain"
	SpanStrong SpanKind = "strong"
	SpanEm     SpanKind = "em"
	SpanCue    SpanKind = "cue"
)

// Span is one emphasized or plain run of visual-guide text.
type Span struct {
	Kind SpanKind `json:"kind"`
	Text string   `json:"text"`
}

// Tokenize splits free-text guidance into emphasis spans using three plain
// delimiter pairs: **strong**, *em*, and [cue]. Delimiters are processed
// left to right without nesting; an unmatched opener is rendered literally.
// This is deliberately not a markup grammar.
func Tokenize(text string) []Span {
	var spans []Span
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			spans = append(spans, Span{Kind: SpanPlain, Text: plain.String()})
			plain.Reset()
		}
	}

	for i := 0; i < len(text); {
		if strings.HasPrefix(text[i:], "**") {
			if end := strings.Index(text[i+2:], "**"); end >= 0 {
				flush()
				spans = append(spans, Span{Kind: SpanStrong, Text: text[i+2 : i+2+end]})
				i += 2 + end + 2
				continue
			}
		}
		if text[i] == '*' && !strings.HasPrefix(text[i:], "**") {
			if end := strings.IndexByte(text[i+1:], '*'); end >= 0 {
				flush()
				spans = append(spans, Span{Kind: SpanEm, Text: text[i+1 : i+1+end]})
				i += 1 + end + 1
				continue
			}
		}
		if text[i] == '[' {
			if end := strings.IndexByte(text[i+1:], ']'); end >= 0 {
				flush()
				spans = append(spans, Span{Kind: SpanCue, Text: text[i+1 : i+1+end]})
				i += 1 + end + 1
				continue
			}
		}
		plain.WriteByte(text[i])
		i++
	}
	flush()
	return spans
}
