// Package validation provides input validation for the ShieldSenior API.
package validation

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxTranscriptLength bounds transcript input. Long enough for an hour of
// speech, short enough to keep classifier prompts sane.
const MaxTranscriptLength = 20000

// MaxGuardianNameLength bounds the guardian display name.
const MaxGuardianNameLength = 100

// transactionIDRegex validates caller-supplied transaction IDs.
var transactionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidTransactionID checks a caller-supplied transaction ID.
func IsValidTransactionID(id string) bool {
	return transactionIDRegex.MatchString(id)
}

// SanitizeTranscript trims, bounds, and strips null bytes from a transcript.
// Truncation backs off to a rune boundary so a multi-byte character is never
// split into invalid UTF-8.
func SanitizeTranscript(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxTranscriptLength {
		cut := MaxTranscriptLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// SanitizeGuardianName trims and bounds a guardian name, falling back to
// the default label when empty.
func SanitizeGuardianName(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	if len(s) > MaxGuardianNameLength {
		s = s[:MaxGuardianNameLength]
	}
	if s == "" {
		return "Guardian"
	}
	return s
}
