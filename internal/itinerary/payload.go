package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// Itinerary is the compacted JSON payload produced by the completion
// provider. Its shape is opaque to the service: every field the provider
// returns is kept.
type Itinerary json.RawMessage

// Parse normalizes the completion text and validates it as an itinerary
// payload: a non-empty JSON array or object.
func Parse(text string) (Itinerary, error) {
	payload := Normalize(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty completion text", ErrParse)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(payload)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var decoded any
	if err := json.Unmarshal(compact.Bytes(), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	switch v := decoded.(type) {
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: itinerary has no days", ErrParse)
		}
	case map[string]any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: itinerary is an empty object", ErrParse)
		}
	default:
		return nil, fmt.Errorf("%w: itinerary must be a JSON array or object", ErrParse)
	}

	return Itinerary(compact.Bytes()), nil
}

// String returns the payload as stored on a completed record
func (it Itinerary) String() string {
	return string(it)
}

// Normalize strips the prose and code-fence wrapping providers tend to put
// around a JSON payload. Rules, first match wins:
//
//  1. text that is valid JSON once trimmed is returned as is
//  2. the first fence is removed: the opening ``` with its optional language
//     tag, and the content runs to the last ``` (or to the end when the
//     closing fence is missing); fences nested inside the payload survive
//  3. the span from the first '[' or '{' to the last matching bracket, looked
//     for inside the fence content first, then in the whole text
//  4. the trimmed text, which then fails to parse
func Normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || json.Valid([]byte(trimmed)) {
		return trimmed
	}

	if inner, ok := stripFence(trimmed); ok {
		if json.Valid([]byte(inner)) {
			return inner
		}
		if span, ok := payloadSpan(inner); ok {
			return span
		}
	}

	if span, ok := payloadSpan(trimmed); ok {
		return span
	}

	return trimmed
}

// stripFence returns the content of the first fenced block in s
func stripFence(s string) (string, bool) {
	start := strings.Index(s, fence)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(fence):]

	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if isLanguageTag(rest[:nl]) {
			rest = rest[nl+1:]
		}
	} else {
		rest = strings.TrimLeftFunc(rest, isTagRune)
	}

	if end := strings.LastIndex(rest, fence); end >= 0 {
		rest = rest[:end]
	}

	return strings.TrimSpace(rest), true
}

// payloadSpan returns the outermost bracketed JSON candidate in s
func payloadSpan(s string) (string, bool) {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", false
	}

	closing := byte(']')
	if s[start] == '{' {
		closing = '}'
	}

	end := strings.LastIndexByte(s, closing)
	if end <= start {
		return "", false
	}

	span := s[start : end+1]
	if !json.Valid([]byte(span)) {
		return "", false
	}
	return span, true
}

func isLanguageTag(line string) bool {
	for _, r := range strings.TrimSpace(line) {
		if !isTagRune(r) {
			return false
		}
	}
	return true
}

func isTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+'
}
