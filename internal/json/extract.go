// Package json provides JSON extraction utilities for parsing model answers.
//
// Vision models often wrap JSON in prose or markdown fences. This package
// finds the first balanced JSON object in such text and decodes it.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON finds and returns the first valid JSON object in a response.
// It handles:
// 1. Pure JSON response - returns the full response
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON objects embedded in text - scans balanced braces left to right,
//    skipping braces inside string literals
//
// The returned offset is the byte position of the object in the original
// response, or -1 when the whole (fence-stripped) response was the object.
func extractJSON(response string) (string, int, error) {
	stripped := stripMarkdownCodeBlocks(response)

	var test interface{}
	if err := json.Unmarshal([]byte(stripped), &test); err == nil {
		if _, ok := test.(map[string]interface{}); ok {
			return stripped, -1, nil
		}
	}

	for start := strings.IndexByte(response, '{'); start != -1; {
		end := matchBrace(response, start)
		if end == -1 {
			break
		}
		candidate := response[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &test); err == nil {
			return candidate, start, nil
		}
		next := strings.IndexByte(response[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}

	return "", 0, fmt.Errorf("failed to extract valid JSON from response: %q", preview(response))
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
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
				return i
			}
		}
	}
	return -1
}

// stripMarkdownCodeBlocks removes markdown code block markers from a response.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}

// ExtractJSONFromResponse extracts and decodes the first JSON object in a response.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, _, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractJSON returns the raw first JSON object in a response.
func ExtractJSON(response string) (string, error) {
	s, _, err := extractJSON(response)
	return s, err
}

// ContainsObject reports whether the response appears to carry a JSON object.
func ContainsObject(response string) bool {
	_, _, err := extractJSON(response)
	return err == nil
}
