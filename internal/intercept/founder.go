// Package intercept answers a fixed set of questions about who built the
// assistant without contacting any backend.
package intercept

import "strings"

const FounderReply = "Software Engineer"

var founderPatterns = []string{
	"who is your founder",
	"who created you",
	"who made you",
	"who developed you",
	"who owns you",
	"who built you",
	"your founder",
	"your creator",
	"your developer",
}

// Match reports the canned reply when text contains any founder phrase.
func Match(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, pattern := range founderPatterns {
		if strings.Contains(lowered, pattern) {
			return FounderReply, true
		}
	}
	return "", false
}
