package usecases

import (
	"strings"

	"intakehub/internal/entities"
)

// Route maps classifier confidence, org thresholds, and a forced-approval
// flag to a routing verdict. Pure function:
//
//	confidence >= autoExecute and not forced  -> AUTO_EXECUTE
//	confidence <  requireApproval             -> REJECT
//	otherwise                                 -> REQUIRES_APPROVAL
func Route(confidence float64, t entities.Thresholds, forceApproval bool) entities.Verdict {
	if confidence >= t.AutoExecute && !forceApproval {
		return entities.VerdictAutoExecute
	}
	if confidence < t.RequireApproval {
		return entities.VerdictReject
	}
	return entities.VerdictRequiresApproval
}

// Keyword buckets for priority scoring, strongest first. The urgent bucket
// always outranks every lower tier regardless of position in the text.
var priorityBuckets = []struct {
	priority int
	keywords []string
}{
	{5, []string{"urgent", "asap", "emergency", "immediately", "right away", "critical", "today"}},
	{4, []string{"important", "priority", "deadline", "eod", "end of day", "tomorrow"}},
	{3, []string{"meeting", "schedule", "reschedule", "appointment", "calendar", "availability", "call"}},
	{2, []string{"newsletter", "fyi", "no rush", "whenever", "unsubscribe", "promotional"}},
}

// DetectPriority scores raw text into [1,5] by keyword bucket. Identical
// input always yields the same priority; the default is the mid value when
// no bucket matches.
func DetectPriority(text string) int {
	lower := strings.ToLower(text)
	for _, bucket := range priorityBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.priority
			}
		}
	}
	return entities.DefaultPriority
}

// HasUrgencyKeyword reports whether the text carries an explicit urgency
// marker, used by the subject-line hint to boost priority one level.
func HasUrgencyKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range priorityBuckets[0].keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// LaneFor selects the dispatch lane for a task priority.
func LaneFor(priority int) string {
	if priority >= entities.UrgentLanePriority {
		return entities.LaneUrgent
	}
	return entities.LaneStandard
}
