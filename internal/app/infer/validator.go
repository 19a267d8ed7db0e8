package infer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/capscanio/capscan/pkg/domain/capability"
)

// maxExcerptLen bounds the amount of offending text echoed in errors.
const maxExcerptLen = 160

// rawRecord is the wire shape expected inside the classification output.
type rawRecord struct {
	Name        *string  `json:"name"`
	Tags        []string `json:"tags"`
	Description *string  `json:"description"`
	Complexity  *string  `json:"complexity"`
	Confidence  *float64 `json:"confidence"`
}

// ParseRecord turns the classification service's free-text output into a
// validated capability record. The output is untrusted: the JSON payload
// may be wrapped in prose or a markdown code fence, fields may be missing
// or malformed, and enum values may be invented. Anything that does not
// validate is rejected rather than coerced, because a silently accepted
// malformed record would poison the semantic index.
func ParseRecord(itemName, rawText string) (*capability.Record, error) {
	payload, err := extractPayload(rawText)
	if err != nil {
		return nil, invalidOutput(rawText, err.Error())
	}

	// Unknown extra fields are tolerated; missing or malformed required
	// fields are not.
	var raw rawRecord
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, invalidOutput(rawText, fmt.Sprintf("payload is not valid JSON: %v", err))
	}

	if raw.Description == nil || strings.TrimSpace(*raw.Description) == "" {
		return nil, invalidOutput(rawText, "missing required field: description")
	}
	if len(raw.Tags) == 0 {
		return nil, invalidOutput(rawText, "missing required field: tags")
	}
	if raw.Complexity == nil {
		return nil, invalidOutput(rawText, "missing required field: complexity")
	}
	if raw.Confidence == nil {
		return nil, invalidOutput(rawText, "missing required field: confidence")
	}

	complexity := capability.Complexity(strings.ToLower(strings.TrimSpace(*raw.Complexity)))
	if !complexity.IsValid() {
		return nil, invalidOutput(rawText,
			fmt.Sprintf("complexity %q is not one of basic, intermediate, advanced", *raw.Complexity))
	}

	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return nil, invalidOutput(rawText,
			fmt.Sprintf("confidence %v outside [0,1]", *raw.Confidence))
	}

	tags := make([]string, 0, len(raw.Tags))
	for _, tag := range raw.Tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			return nil, invalidOutput(rawText, "tags must not contain blank entries")
		}
		tags = append(tags, strings.ToLower(trimmed))
	}

	// The model may echo the item name back; the item being scanned is
	// authoritative for identity either way.
	record, err := capability.NewRecord(itemName, tags, *raw.Description, complexity, *raw.Confidence)
	if err != nil {
		return nil, invalidOutput(rawText, err.Error())
	}
	return record, nil
}

// extractPayload locates the JSON object inside free text. It prefers the
// body of a ```json fenced block, then falls back to the first balanced
// top-level object anywhere in the text. Balancing is string-aware so
// braces inside JSON strings do not terminate the region early.
func extractPayload(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("empty response")
	}

	if fenced := extractFenced(trimmed); fenced != "" {
		trimmed = fenced
	}

	start := strings.IndexByte(trimmed, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return trimmed[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// extractFenced returns the body of the first markdown code fence, or ""
// when the text contains none.
func extractFenced(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return ""
	}
	rest := text[open+3:]
	// Skip an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

func invalidOutput(rawText, reason string) error {
	return fmt.Errorf("%w: %s (output: %q)", ErrInvalidOutput, reason, excerpt(rawText))
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxExcerptLen {
		return s
	}
	return s[:maxExcerptLen] + "..."
}
