package recording

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/outfield-crm/outfield/pkg/models"
)

func event(title string, attendees ...models.Attendee) *models.CalendarEvent {
	return &models.CalendarEvent{
		ID:         "ev-1",
		TenantID:   "t-1",
		Title:      title,
		MeetingURL: "https://meet.example.com/abc",
		Attendees:  attendees,
	}
}

func TestResolvePrefersUserPolicy(t *testing.T) {
	user := &models.RecordingPolicy{RuleType: models.RuleAlways, UserID: "u-1"}
	tenant := &models.RecordingPolicy{RuleType: models.RuleManualOnly}

	assert.Same(t, user, Resolve(user, tenant))
	assert.Same(t, tenant, Resolve(nil, tenant))
	assert.Equal(t, models.RuleExternalOnly, Resolve(nil, nil).RuleType)
}

func TestEvaluateNoMeetingURLNeverRecords(t *testing.T) {
	policy := &models.RecordingPolicy{RuleType: models.RuleAlways}
	ev := event("Weekly sync")
	ev.MeetingURL = ""

	decision := Evaluate(policy, nil, ev)
	assert.False(t, decision.ShouldRecord)
	assert.Equal(t, "no meeting URL", decision.Reason)
}

func TestEvaluateAlwaysAndManualOnly(t *testing.T) {
	ev := event("Weekly sync")

	assert.True(t, Evaluate(&models.RecordingPolicy{RuleType: models.RuleAlways}, nil, ev).ShouldRecord)
	assert.False(t, Evaluate(&models.RecordingPolicy{RuleType: models.RuleManualOnly}, nil, ev).ShouldRecord)
}

func TestEvaluateExternalOnly(t *testing.T) {
	policy := &models.RecordingPolicy{RuleType: models.RuleExternalOnly}
	internal := []string{"acme.com"}

	tests := []struct {
		name      string
		attendees []models.Attendee
		expected  bool
	}{
		{
			name: "external non-organizer attendee records",
			attendees: []models.Attendee{
				{Email: "bob@acme.com", Organizer: true},
				{Email: "carol@partner.com"},
			},
			expected: true,
		},
		{
			name: "all internal attendees do not record",
			attendees: []models.Attendee{
				{Email: "bob@acme.com"},
				{Email: "dave@acme.com"},
			},
			expected: false,
		},
		{
			name: "organizer externality is ignored",
			attendees: []models.Attendee{
				{Email: "eve@partner.com", Organizer: true},
				{Email: "bob@acme.com"},
			},
			expected: false,
		},
		{
			name: "subdomain matches are internal",
			attendees: []models.Attendee{
				{Email: "bob@eu.acme.com"},
			},
			expected: false,
		},
		{
			name: "domain match is case-insensitive",
			attendees: []models.Attendee{
				{Email: "bob@ACME.COM"},
			},
			expected: false,
		},
		{
			name: "lookalike domain is external",
			attendees: []models.Attendee{
				{Email: "mallory@notacme.com"},
			},
			expected: true,
		},
		{
			name:      "no attendees do not record",
			attendees: nil,
			expected:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := Evaluate(policy, internal, event("Quarterly review", tc.attendees...))
			assert.Equal(t, tc.expected, decision.ShouldRecord, decision.Reason)
		})
	}
}

func TestEvaluateKeywordInclude(t *testing.T) {
	policy := &models.RecordingPolicy{
		RuleType: models.RuleKeywordInclude,
		Keywords: []string{"demo", "Sales"},
	}

	assert.True(t, Evaluate(policy, nil, event("Product DEMO with Initech")).ShouldRecord)
	assert.True(t, Evaluate(policy, nil, event("sales pipeline review")).ShouldRecord)
	assert.False(t, Evaluate(policy, nil, event("1:1 with manager")).ShouldRecord)
}

func TestEvaluateKeywordIncludeEmptyListNeverMatches(t *testing.T) {
	policy := &models.RecordingPolicy{RuleType: models.RuleKeywordInclude}

	assert.False(t, Evaluate(policy, nil, event("anything at all")).ShouldRecord)
}

func TestEvaluateKeywordExclude(t *testing.T) {
	policy := &models.RecordingPolicy{
		RuleType: models.RuleKeywordExclude,
		Keywords: []string{"internal", "standup"},
	}

	assert.False(t, Evaluate(policy, nil, event("Daily Standup")).ShouldRecord)
	assert.True(t, Evaluate(policy, nil, event("Customer kickoff")).ShouldRecord)
}

func TestEvaluateKeywordExcludeEmptyListAlwaysRecords(t *testing.T) {
	policy := &models.RecordingPolicy{RuleType: models.RuleKeywordExclude}

	assert.True(t, Evaluate(policy, nil, event("anything at all")).ShouldRecord)
}
