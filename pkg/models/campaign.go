package models

import "time"

// CampaignStatus is the lifecycle state of a LinkedIn outreach campaign.
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// CampaignStepType enumerates LinkedIn action kinds.
type CampaignStepType string

const (
	CampaignStepConnect CampaignStepType = "connect"
	CampaignStepMessage CampaignStepType = "message"
	CampaignStepView    CampaignStepType = "view"
)

// SendingWindow restricts campaign activity to configured days and a
// local-time hour range.
type SendingWindow struct {
	Days      []time.Weekday `json:"days"`
	HourStart int            `json:"hour_start"`
	HourEnd   int            `json:"hour_end"`
	Timezone  string         `json:"timezone"`
}

// Contains reports whether the given instant falls inside the window,
// evaluated in the window's own location.
func (w *SendingWindow) Contains(at time.Time) bool {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		loc = time.UTC
	}

	local := at.In(loc)

	dayOK := false

	for _, d := range w.Days {
		if local.Weekday() == d {
			dayOK = true

			break
		}
	}

	return dayOK && local.Hour() >= w.HourStart && local.Hour() < w.HourEnd
}

// LinkedInCampaign drives periodic outreach to a list of leads.
type LinkedInCampaign struct {
	ID              string          `json:"id"        validate:"required"`
	TenantID        string          `json:"tenant_id" validate:"required"`
	Name            string          `json:"name"`
	Status          CampaignStatus  `json:"status"`
	SenderConnected bool            `json:"sender_connected"`
	DailyLimit      int             `json:"daily_limit"`
	Window          SendingWindow   `json:"window"`
	Steps           []*CampaignStep `json:"steps"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NextEnabledStep returns the first enabled step at or after number,
// or nil when the campaign has no further steps.
func (c *LinkedInCampaign) NextEnabledStep(number int) *CampaignStep {
	for _, step := range c.Steps {
		if step.Number >= number && step.Enabled {
			return step
		}
	}

	return nil
}

// CampaignStep is one configured LinkedIn outreach step.
type CampaignStep struct {
	Number   int              `json:"number"`
	Type     CampaignStepType `json:"type"`
	Enabled  bool             `json:"enabled"`
	Template string           `json:"template,omitempty"`
}

// LeadStatus is the per-lead progress through a campaign.
type LeadStatus string

const (
	LeadStatusPending         LeadStatus = "pending"
	LeadStatusCheckingProfile LeadStatus = "checking_profile"
	LeadStatusConnected       LeadStatus = "connected"
	LeadStatusMessaged        LeadStatus = "messaged"
	LeadStatusAwaitingReply   LeadStatus = "awaiting_reply"
	LeadStatusReplied         LeadStatus = "replied"
	LeadStatusCompleted       LeadStatus = "completed"
)

// Terminal reports whether the lead needs no further scheduling.
func (s LeadStatus) Terminal() bool {
	return s == LeadStatusReplied || s == LeadStatusCompleted
}

// CampaignLead is one prospect enrolled in a campaign. Fields holds the
// contact attributes used for placeholder personalization.
type CampaignLead struct {
	ID             string            `json:"id"`
	CampaignID     string            `json:"campaign_id"`
	Status         LeadStatus        `json:"status"`
	CurrentStep    int               `json:"current_step"`
	NextActionAt   *time.Time        `json:"next_action_at,omitempty"`
	LastInboundAt  *time.Time        `json:"last_inbound_at,omitempty"`
	LastOutboundAt *time.Time        `json:"last_outbound_at,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ActionStatus tracks a queued LinkedIn action through manual or
// automated execution.
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusDone       ActionStatus = "done"
	ActionStatusFailed     ActionStatus = "failed"
)

// Pending reports whether the action still blocks new scheduling for
// its lead.
func (s ActionStatus) Pending() bool {
	return s == ActionStatusPending || s == ActionStatusInProgress
}

// LeadAction is one enqueued LinkedIn action for a lead.
type LeadAction struct {
	ID         string           `json:"id"`
	LeadID     string           `json:"lead_id"`
	CampaignID string           `json:"campaign_id"`
	Type       CampaignStepType `json:"type"`
	Status     ActionStatus     `json:"status"`
	Content    string           `json:"content,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// LeadMessage is one inbound or outbound message exchanged with a lead.
// The inbound-message query over these records is the authoritative
// reply check; the cached lead timestamps are a fast-path hint only.
type LeadMessage struct {
	ID      string    `json:"id"`
	LeadID  string    `json:"lead_id"`
	Inbound bool      `json:"inbound"`
	Body    string    `json:"body,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}
