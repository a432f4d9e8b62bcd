// Package parser extracts and validates the Structured Response JSON object
// from a final AI message. It is a pure function package: no side effects,
// and a parse failure degrades to (nil, false) rather than an error, so the
// executor always has a safe fallback to a plain text response.
package parser

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Parse attempts to extract a workflow.StructuredResponse from text, trying
// the fast, fenced, and balanced-brace extraction paths in order, then
// truncation repair if extraction succeeded but parsing still failed.
// Returns (nil, false) if no candidate validates.
func Parse(text string) (*workflow.StructuredResponse, bool) {
	candidates := []string{}
	if strings.TrimSpace(text) != "" {
		candidates = append(candidates, strings.TrimSpace(text))
	}
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if b, ok := balancedObject(text); ok {
		candidates = append(candidates, b)
	}

	for _, candidate := range candidates {
		if resp, ok := decodeAndValidate(candidate); ok {
			return resp, true
		}
		if repaired, ok := repairTruncation(candidate); ok {
			if resp, ok := decodeAndValidate(repaired); ok {
				return resp, true
			}
		}
	}
	return nil, false
}

// balancedObject locates the first '{' in text and scans forward tracking
// brace depth (respecting string literals and escapes) until depth returns
// to zero, returning the slice in between.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't affect depth
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// repairTruncation attempts to close a JSON object that was cut off
// mid-stream: strip a trailing comma, then append closing brackets/braces
// until the counts balance.
func repairTruncation(candidate string) (string, bool) {
	trimmed := strings.TrimRight(candidate, " \t\n\r")
	trimmed = strings.TrimSuffix(trimmed, ",")

	openBrackets := strings.Count(trimmed, "[") - strings.Count(trimmed, "]")
	openBraces := strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
	if openBrackets < 0 || openBraces < 0 {
		return "", false
	}
	if openBrackets == 0 && openBraces == 0 {
		return "", false
	}

	var buf bytes.Buffer
	buf.WriteString(trimmed)
	for i := 0; i < openBrackets; i++ {
		buf.WriteByte(']')
	}
	for i := 0; i < openBraces; i++ {
		buf.WriteByte('}')
	}
	return buf.String(), true
}

// decodeAndValidate unmarshals candidate and runs it through Validate.
func decodeAndValidate(candidate string) (*workflow.StructuredResponse, bool) {
	var resp workflow.StructuredResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return nil, false
	}
	if issues := Validate(&resp); len(issues) > 0 {
		return nil, false
	}
	return &resp, true
}
