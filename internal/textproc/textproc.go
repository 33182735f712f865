// Package textproc normalizes call transcripts and extracts money and
// duration signals used by the scam detection pipeline.
package textproc

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Matches "rs 50,000", "50000", "5 lakh" style amounts.
	amountRe = regexp.MustCompile(`(?:rs\.?\s*)?[\d,]+(?:\s*(?:lakh|crore|thousand))?`)
)

// Normalize lowercases the text, replaces everything outside [a-z0-9,
// whitespace] with a space, and collapses whitespace runs.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = nonAlnumRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractAmounts returns money amounts mentioned in the text, in order of
// appearance. Duplicates are retained.
func ExtractAmounts(text string) []string {
	matches := amountRe.FindAllString(strings.ToLower(text), -1)
	amounts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m = strings.TrimSpace(m); m != "" {
			amounts = append(amounts, m)
		}
	}
	return amounts
}

// DurationRisk is the risk contribution of a call's length. Scammers keep
// victims on the line; very long calls are the classic digital arrest pattern.
type DurationRisk struct {
	Level string `json:"level"` // LOW, MEDIUM, HIGH
	Score int    `json:"score"`
	Note  string `json:"note"`
}

// CallDurationRisk classifies a call duration into a risk band.
func CallDurationRisk(durationSeconds int) DurationRisk {
	switch {
	case durationSeconds >= 1800:
		return DurationRisk{Level: "HIGH", Score: 30, Note: "Very long call duration - classic digital arrest pattern"}
	case durationSeconds >= 600:
		return DurationRisk{Level: "MEDIUM", Score: 15, Note: "Extended call - monitor for scam signs"}
	default:
		return DurationRisk{Level: "LOW", Score: 0, Note: "Normal call duration"}
	}
}
