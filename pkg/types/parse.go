package types

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseFacadeAnalysis parses a vision model reply. Replies that are not
// JSON, or cannot be repaired into it, yield a fallback result with no
// openings rather than an error.
func ParseFacadeAnalysis(raw string) *FacadeAnalysis {
	raw = SanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return fallback("model returned non-JSON response")
	}

	var result FacadeAnalysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallback("failed to parse model response")
	}
	if result.Facade.Empty() {
		result.Facade = FullFrame
	}
	return &result
}

func fallback(description string) *FacadeAnalysis {
	return &FacadeAnalysis{
		Facade:      FullFrame,
		Description: description,
		Fallback:    true,
	}
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// a model reply and keeps only the outermost object
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
