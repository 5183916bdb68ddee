// Package normalize cleans provider output that may carry style or
// reasoning markup.
package normalize

import (
	"regexp"
	"strings"
)

const Fallback = "I apologize, but I couldn't generate a meaningful response."

var (
	userStyleBlock = regexp.MustCompile(`(?s)<userStyle>.*?</userStyle>`)
	thinkBlock     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	anyTag         = regexp.MustCompile(`<[^>]*>`)
)

// Response strips markup, drops blank lines and trims. The result is never
// empty and Response(Response(x)) == Response(x).
func Response(raw string) string {
	cleaned := strings.ReplaceAll(raw, "\r\n", "\n")
	cleaned = userStyleBlock.ReplaceAllString(cleaned, "")
	cleaned = thinkBlock.ReplaceAllString(cleaned, "")
	cleaned = anyTag.ReplaceAllString(cleaned, "")
	cleaned = dropBlankLines(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return Fallback
	}
	return cleaned
}

func dropBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
