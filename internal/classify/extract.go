package classify

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedResponse marks a model response from which no JSON payload
// could be extracted or parsed. Callers treat the whole batch as failed
// and let the retry policy take over.
var ErrMalformedResponse = errors.New("no parseable JSON in model response")

// extractStrategy attempts to pull a JSON candidate out of a free-form
// response. Returns false when the strategy does not apply.
type extractStrategy func(content string) (string, bool)

// extractStrategies are tried in order, most reliable first: a fenced
// block tagged json, then any fenced block, then the span between the
// first '{' and the last '}'.
var extractStrategies = []extractStrategy{
	extractTaggedFence,
	extractAnyFence,
	extractBraceSpan,
}

func extractTaggedFence(content string) (string, bool) {
	const fence = "```json"
	start := strings.Index(content, fence)
	if start == -1 {
		return "", false
	}
	rest := content[start+len(fence):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func extractAnyFence(content string) (string, bool) {
	start := strings.Index(content, "```")
	if start == -1 {
		return "", false
	}
	rest := content[start+3:]
	// Skip a language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 && nl < 20 && !strings.ContainsAny(rest[:nl], "{}") {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func extractBraceSpan(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end <= start {
		return "", false
	}
	return strings.TrimSpace(content[start : end+1]), true
}

// extractJSON runs the strategy ladder and unmarshals the first candidate
// that parses. All strategies failing is a malformed-response error, never
// a guess.
func extractJSON(content string, out any) error {
	for _, strategy := range extractStrategies {
		candidate, ok := strategy(content)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}
	return ErrMalformedResponse
}
