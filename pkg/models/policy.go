package models

import "time"

// RecordingRuleType enumerates the recording policy rules.
type RecordingRuleType string

const (
	RuleAlways         RecordingRuleType = "always"
	RuleManualOnly     RecordingRuleType = "manual_only"
	RuleExternalOnly   RecordingRuleType = "external_only"
	RuleKeywordInclude RecordingRuleType = "keyword_include"
	RuleKeywordExclude RecordingRuleType = "keyword_exclude"
)

// RecordingPolicy decides whether upcoming meetings are auto-recorded.
// A user-level policy (UserID set) overrides the tenant default.
type RecordingPolicy struct {
	ID       string            `json:"id"`
	TenantID string            `json:"tenant_id" validate:"required"`
	UserID   string            `json:"user_id,omitempty"`
	RuleType RecordingRuleType `json:"rule_type" validate:"required"`
	Keywords []string          `json:"keywords,omitempty"`
}

// Attendee is one participant on a calendar event.
type Attendee struct {
	Email     string `json:"email"`
	Organizer bool   `json:"organizer"`
}

// CalendarEvent is a synced upcoming meeting considered for recording.
type CalendarEvent struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	UserID     string     `json:"user_id"`
	MeetingID  string     `json:"meeting_id"`
	Title      string     `json:"title"`
	MeetingURL string     `json:"meeting_url,omitempty"`
	StartsAt   time.Time  `json:"starts_at"`
	Attendees  []Attendee `json:"attendees,omitempty"`
}

// Tenant carries the internal email domain set used by the
// external-only recording rule.
type Tenant struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	InternalDomains []string `json:"internal_domains,omitempty"`
}
