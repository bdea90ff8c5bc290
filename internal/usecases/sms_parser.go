package usecases

import (
	"regexp"
	"strings"
)

// QuickReply is a short inbound token mapped to the bounded reply
// vocabulary, with a confidence for the match.
type QuickReply struct {
	Token      string  `json:"token"`
	Confidence float64 `json:"confidence"`
}

// Quick-reply vocabulary.
const (
	ReplyConfirm    = "confirm"
	ReplyCancel     = "cancel"
	ReplyReschedule = "reschedule"
	ReplySelect     = "select"
	ReplyHelp       = "help"
	ReplyOther      = "other"
)

var (
	confirmPattern    = regexp.MustCompile(`^(yes|y|ok|okay|confirm|confirmed|sure|yep|yeah|👍)[.!]*$`)
	cancelPattern     = regexp.MustCompile(`^(no|n|cancel|cancelled|stop|nope|decline)[.!]*$`)
	reschedulePattern = regexp.MustCompile(`^(reschedule|change|move|postpone|later)\b`)
	selectPattern     = regexp.MustCompile(`^[1-9]$`)
	helpPattern       = regexp.MustCompile(`^(help|\?|info|menu)[.!]*$`)
)

// ExtractQuickReply matches an SMS body against the bounded reply
// vocabulary. Exact single-token matches score high; loose prefix matches
// score lower; anything else is "other" with minimal confidence.
func ExtractQuickReply(body string) QuickReply {
	text := strings.ToLower(strings.TrimSpace(body))
	if text == "" {
		return QuickReply{Token: ReplyOther, Confidence: 0}
	}

	switch {
	case confirmPattern.MatchString(text):
		return QuickReply{Token: ReplyConfirm, Confidence: 0.95}
	case cancelPattern.MatchString(text):
		return QuickReply{Token: ReplyCancel, Confidence: 0.95}
	case selectPattern.MatchString(text):
		return QuickReply{Token: ReplySelect, Confidence: 0.9}
	case helpPattern.MatchString(text):
		return QuickReply{Token: ReplyHelp, Confidence: 0.9}
	case reschedulePattern.MatchString(text):
		return QuickReply{Token: ReplyReschedule, Confidence: 0.85}
	}

	// Loose matches inside short messages, e.g. "yes please".
	if len(text) <= 40 {
		words := strings.Fields(text)
		if len(words) > 0 {
			switch {
			case confirmPattern.MatchString(words[0]):
				return QuickReply{Token: ReplyConfirm, Confidence: 0.6}
			case cancelPattern.MatchString(words[0]):
				return QuickReply{Token: ReplyCancel, Confidence: 0.6}
			}
		}
	}

	return QuickReply{Token: ReplyOther, Confidence: 0.2}
}

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips a phone number to E.164 form: digits with a single
// leading +. A bare 10-digit number is assumed to be NANP and prefixed +1;
// a leading 00 is rewritten to +.
func NormalizePhone(raw string) string {
	s := nonPhoneChars.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "+") {
		return "+" + strings.ReplaceAll(s[1:], "+", "")
	}
	if strings.HasPrefix(s, "00") {
		return "+" + s[2:]
	}
	if len(s) == 10 {
		return "+1" + s
	}
	return "+" + s
}
