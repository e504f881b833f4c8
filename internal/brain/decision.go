package brain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNoDecision = errors.New("no tool decision in model reply")

// Decision is the JSON contract the model is asked to honor.
type Decision struct {
	Action            string         `json:"action"`
	Parameters        map[string]any `json:"parameters"`
	Explanation       string         `json:"explanation"`
	MissingInfo       []string       `json:"missing_info,omitempty"`
	ValidationSummary string         `json:"validation_summary,omitempty"`
}

// ParseDecision is deliberately tolerant: models wrap JSON in prose or code
// fences often enough that a direct unmarshal failure falls back to the
// first balanced {...} substring before giving up.
func ParseDecision(raw string) (Decision, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Decision{}, ErrNoDecision
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err == nil && d.Action != "" {
		return normalize(d), nil
	}

	candidate, ok := firstObject(raw)
	if !ok {
		return Decision{}, ErrNoDecision
	}
	if err := json.Unmarshal([]byte(candidate), &d); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrNoDecision, err)
	}
	if d.Action == "" {
		return Decision{}, ErrNoDecision
	}
	return normalize(d), nil
}

func normalize(d Decision) Decision {
	d.Action = strings.TrimSpace(d.Action)
	if d.Parameters == nil {
		d.Parameters = map[string]any{}
	}
	return d
}

// firstObject extracts the first balanced top-level {...} span, tracking
// string literals and escapes so braces inside values don't break the depth
// count.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
