package usecases

import (
	"html"
	"regexp"
	"strings"

	"intakehub/internal/entities"
)

var (
	scriptStylePattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	blockTagPattern    = regexp.MustCompile(`(?i)</?(p|div|li|tr|h[1-6]|table|ul|ol|blockquote)[^>]*>|<br\s*/?>`)
	anyTagPattern      = regexp.MustCompile(`<[^>]+>`)
	blankLinesPattern  = regexp.MustCompile(`\n{3,}`)
)

// StripHTML converts an HTML email body to plain text: block elements become
// newlines, remaining tags are dropped, entities are decoded.
func StripHTML(htmlBody string) string {
	text := scriptStylePattern.ReplaceAllString(htmlBody, "")
	text = blockTagPattern.ReplaceAllString(text, "\n")
	text = anyTagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	// Normalize whitespace per line, collapse runs of blank lines.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Ordered signature / reply-quote markers. A match only counts as a
// signature when it starts past roughly the first 30% of the body, which
// keeps short messages beginning with "Thanks" intact.
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^--\s*$`),
	regexp.MustCompile(`(?m)^_{3,}\s*$`),
	regexp.MustCompile(`(?im)^sent from my .*$`),
	regexp.MustCompile(`(?im)^sent via .*$`),
	regexp.MustCompile(`(?im)^on .{5,200} wrote:\s*$`),
	regexp.MustCompile(`(?im)^(best regards|kind regards|regards|best|thanks|thank you|cheers|sincerely)[,!.]?\s*$`),
	regexp.MustCompile(`(?im)^(this e?-?mail and any attachments|confidentiality notice|disclaimer)[:. ]`),
}

// StripSignature removes the trailing signature or quoted-reply block from
// an email body using the ordered marker list.
func StripSignature(body string) string {
	if body == "" {
		return body
	}
	threshold := len(body) * 3 / 10
	cut := -1
	for _, pattern := range signaturePatterns {
		loc := pattern.FindStringIndex(body)
		if loc == nil || loc[0] < threshold {
			continue
		}
		if cut == -1 || loc[0] < cut {
			cut = loc[0]
		}
	}
	if cut == -1 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:cut])
}

var subjectPrefixPattern = regexp.MustCompile(`(?i)^((re|fwd?|fw)\s*:\s*)+`)

// SubjectHint derives an intent and priority hint from an email subject via
// the weighted keyword buckets. Re:/Fwd: prefixes default to FOLLOW_UP when
// no stronger intent matches, and explicit urgency keywords always boost
// priority one level on top of the matched bucket.
func SubjectHint(subject string) (entities.TaskType, int) {
	trimmed := strings.TrimSpace(subject)
	isReply := subjectPrefixPattern.MatchString(trimmed)
	bare := subjectPrefixPattern.ReplaceAllString(trimmed, "")
	lower := strings.ToLower(bare)

	intent := entities.TaskUnknown
	switch {
	case containsAny(lower, "reschedule", "move the meeting", "new time"):
		intent = entities.TaskRescheduleMeeting
	case containsAny(lower, "cancel"):
		intent = entities.TaskCancelMeeting
	case containsAny(lower, "availability", "are you free", "free on"):
		intent = entities.TaskCheckAvailability
	case containsAny(lower, "meeting", "schedule", "appointment", "calendar", "call", "invite"):
		intent = entities.TaskScheduleMeeting
	case containsAny(lower, "reminder", "don't forget", "dont forget"):
		intent = entities.TaskReminder
	case containsAny(lower, "question", "inquiry", "help", "quote", "pricing"):
		intent = entities.TaskInquiry
	}
	if intent == entities.TaskUnknown && isReply {
		intent = entities.TaskFollowUp
	}

	priority := DetectPriority(lower)
	if HasUrgencyKeyword(lower) {
		priority = entities.ClampPriority(priority + 1)
	}
	return intent, priority
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
