package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/croppy/pkg/types"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// Fallback returns the centred half-size subject used when a reply cannot be read.
func Fallback(label, description string) *types.AnalysisResult {
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      label,
			Confidence: 0.1,
			Box:        types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
		Tags:        []string{"fallback"},
	}
}

// ParseSubject reads a model reply into an analysis result. Replies that are
// not JSON yield a Fallback result rather than an error.
func ParseSubject(raw string) *types.AnalysisResult {
	raw = SanitizeJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return Fallback("unclear image", "model returned non-JSON response")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Fallback("parse error", "failed to parse model response")
	}

	if result.Primary.Box.W == 0 && result.Primary.Box.H == 0 {
		result.Primary.Box = types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
	}
	if result.Primary.Cx == 0 && result.Primary.Cy == 0 {
		result.Primary.Cx, result.Primary.Cy = result.Primary.Box.Center()
	}
	return &result
}

// SanitizeJSON strips code fences, comments and trailing commas and keeps the
// outermost object.
func SanitizeJSON(raw string) string {
	raw = strings.TrimSpace(raw)

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
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
