// Package recording decides whether an upcoming calendar event should
// be auto-recorded. The evaluator is pure: it reads policies and event
// data and produces a decision, nothing else.
package recording

import (
	"strings"

	"github.com/outfield-crm/outfield/pkg/models"
)

// Decision is the outcome of evaluating one calendar event.
type Decision struct {
	ShouldRecord bool
	Reason       string
	RuleType     models.RecordingRuleType
}

// Resolve picks the effective policy: user-level override if present,
// else the tenant default, else an implicit external-only policy.
func Resolve(userPolicy, tenantPolicy *models.RecordingPolicy) *models.RecordingPolicy {
	if userPolicy != nil {
		return userPolicy
	}

	if tenantPolicy != nil {
		return tenantPolicy
	}

	return &models.RecordingPolicy{RuleType: models.RuleExternalOnly}
}

// Evaluate applies the policy to one upcoming event. internalDomains is
// the tenant's internal email domain set, consulted by the
// external-only rule.
func Evaluate(policy *models.RecordingPolicy, internalDomains []string, event *models.CalendarEvent) Decision {
	if event.MeetingURL == "" {
		return Decision{Reason: "no meeting URL", RuleType: policy.RuleType}
	}

	switch policy.RuleType {
	case models.RuleAlways:
		return Decision{ShouldRecord: true, Reason: "policy records all meetings", RuleType: policy.RuleType}

	case models.RuleManualOnly:
		return Decision{Reason: "policy requires manual recording", RuleType: policy.RuleType}

	case models.RuleExternalOnly:
		return evaluateExternalOnly(internalDomains, event)

	case models.RuleKeywordInclude:
		if keyword, ok := matchKeyword(event.Title, policy.Keywords); ok {
			return Decision{ShouldRecord: true, Reason: "title matches keyword " + keyword, RuleType: policy.RuleType}
		}

		return Decision{Reason: "title matches no configured keyword", RuleType: policy.RuleType}

	case models.RuleKeywordExclude:
		if keyword, ok := matchKeyword(event.Title, policy.Keywords); ok {
			return Decision{Reason: "title matches excluded keyword " + keyword, RuleType: policy.RuleType}
		}

		return Decision{ShouldRecord: true, Reason: "title matches no excluded keyword", RuleType: policy.RuleType}

	default:
		return Decision{Reason: "unknown rule type", RuleType: policy.RuleType}
	}
}

// evaluateExternalOnly records when at least one non-organizer attendee
// is outside the internal domain set.
func evaluateExternalOnly(internalDomains []string, event *models.CalendarEvent) Decision {
	for _, attendee := range event.Attendees {
		if attendee.Organizer {
			continue
		}

		if attendee.Email == "" {
			continue
		}

		if !isInternal(attendee.Email, internalDomains) {
			return Decision{
				ShouldRecord: true,
				Reason:       "external attendee " + attendee.Email,
				RuleType:     models.RuleExternalOnly,
			}
		}
	}

	return Decision{Reason: "all attendees internal", RuleType: models.RuleExternalOnly}
}

// isInternal matches the attendee's email domain against the internal
// set, exact or subdomain, case-insensitive.
func isInternal(emailAddr string, internalDomains []string) bool {
	at := strings.LastIndex(emailAddr, "@")
	if at < 0 {
		return false
	}

	domain := strings.ToLower(emailAddr[at+1:])

	for _, internal := range internalDomains {
		internal = strings.ToLower(internal)

		if domain == internal || strings.HasSuffix(domain, "."+internal) {
			return true
		}
	}

	return false
}

// matchKeyword reports the first keyword contained in the title,
// case-insensitive. An empty keyword list never matches.
func matchKeyword(title string, keywords []string) (string, bool) {
	lowered := strings.ToLower(title)

	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}

		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return keyword, true
		}
	}

	return "", false
}
