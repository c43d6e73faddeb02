package campaign

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/outfield-crm/outfield/pkg/mocks"
	"github.com/outfield-crm/outfield/pkg/models"
)

// inWindow is a Tuesday 10:00 UTC.
var inWindow = time.Date(2026, 4, 7, 10, 0, 0, 0, time.UTC)

func testCampaign() *models.LinkedInCampaign {
	return &models.LinkedInCampaign{
		ID:              "c-1",
		TenantID:        "t-1",
		Status:          models.CampaignStatusActive,
		SenderConnected: true,
		DailyLimit:      25,
		Window: models.SendingWindow{
			Days:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			HourStart: 9,
			HourEnd:   17,
			Timezone:  "UTC",
		},
		Steps: []*models.CampaignStep{
			{Number: 1, Type: models.CampaignStepConnect, Enabled: true, Template: "Hi {{firstName}}"},
			{Number: 2, Type: models.CampaignStepMessage, Enabled: false},
			{Number: 3, Type: models.CampaignStepMessage, Enabled: true, Template: "Following up, {{firstName}}"},
		},
	}
}

func TestRunOnceSkipsCampaignOutsideWindow(t *testing.T) {
	repo := &mocks.MockCampaignRepository{}
	repo.On("ListActive", mock.Anything).Return([]*models.LinkedInCampaign{testCampaign()}, nil)

	scheduler := NewScheduler(repo, slog.Default())

	saturday := time.Date(2026, 4, 11, 10, 0, 0, 0, time.UTC)

	stats, err := scheduler.RunOnce(t.Context(), saturday)
	require.NoError(t, err)
	assert.Zero(t, stats.CampaignsVisited)
	repo.AssertNotCalled(t, "LeadsDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOnceSkipsDisconnectedSender(t *testing.T) {
	campaign := testCampaign()
	campaign.SenderConnected = false

	repo := &mocks.MockCampaignRepository{}
	repo.On("ListActive", mock.Anything).Return([]*models.LinkedInCampaign{campaign}, nil)

	scheduler := NewScheduler(repo, slog.Default())

	stats, err := scheduler.RunOnce(t.Context(), inWindow)
	require.NoError(t, err)
	assert.Zero(t, stats.CampaignsVisited)
}

func TestRunOncePendingLeadGetsProfileViewAndFirstStep(t *testing.T) {
	campaign := testCampaign()
	lead := &models.CampaignLead{
		ID:         "l-1",
		CampaignID: "c-1",
		Status:     models.LeadStatusPending,
		Fields:     map[string]string{"firstName": "Ada"},
	}

	repo := &mocks.MockCampaignRepository{}
	repo.On("ListActive", mock.Anything).Return([]*models.LinkedInCampaign{campaign}, nil)
	repo.On("LeadsDue", mock.Anything, "c-1", inWindow, 25).Return([]*models.CampaignLead{lead}, nil)
	repo.On("HasPendingAction", mock.Anything, "l-1").Return(false, nil)
	repo.On("CreateAction", mock.Anything, mock.MatchedBy(func(action *models.LeadAction) bool {
		return action.Type == models.CampaignStepView && action.Content == ""
	})).Return(nil).Once()
	repo.On("CreateAction", mock.Anything, mock.MatchedBy(func(action *models.LeadAction) bool {
		return action.Type == models.CampaignStepConnect && action.Content == "Hi Ada"
	})).Return(nil).Once()
	repo.On("SaveLead", mock.Anything, lead).Return(nil)

	scheduler := NewScheduler(repo, slog.Default())

	stats, err := scheduler.RunOnce(t.Context(), inWindow)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActionsCreated)
	assert.Equal(t, models.LeadStatusCheckingProfile, lead.Status)
	assert.Equal(t, 1, lead.CurrentStep)
	require.NotNil(t, lead.NextActionAt)
	repo.AssertExpectations(t)
}

func TestRunOnceSkipsLeadWithPendingAction(t *testing.T) {
	campaign := testCampaign()
	lead := &models.CampaignLead{ID: "l-1", CampaignID: "c-1", Status: models.LeadStatusPending}

	repo := &mocks.MockCampaignRepository{}
	repo.On("ListActive", mock.Anything).Return([]*models.LinkedInCampaign{campaign}, nil)
	repo.On("LeadsDue", mock.Anything, "c-1", inWindow, 25).Return([]*models.CampaignLead{lead}, nil)
	repo.On("HasPendingAction", mock.Anything, "l-1").Return(true, nil)

	scheduler := NewScheduler(repo, slog.Default())

	stats, err := scheduler.RunOnce(t.Context(), inWindow)
	require.NoError(t, err)
	assert.Zero(t, stats.ActionsCreated)
	repo.AssertNotCalled(t, "CreateAction", mock.Anything, mock.Anything)
}

func TestRunOnceReplyMovesLeadToReplied(t *testing.T) {
	campaign := testCampaign()
	lastOutbound := inWindow.Add(-48 * time.Hour)
	lead := &models.CampaignLead{
		ID:             "l-1",
		CampaignID:     "c-1",
		Status:         models.LeadStatusMessaged,
		CurrentStep:    1,
		LastOutboundAt: &lastOutbound,
	}

	repo := &mocks.MockCampaignRepository{}
	repo.On("ListActive", mock.Anything).Return([]*models.LinkedInCampaign{campaign}, nil)
	repo.On("LeadsDue", mock.Anything, "c-1", inWindow, 25).Return([]*models.CampaignLead{lead}, nil)
	repo.On("HasPendingAction", mock.Anything, "l-1").Return(false, nil)
	repo.On("InboundAfter", mock.Anything, "l-1", lastOutbound).Return(true, nil)
	repo.On("SaveLead", mock.Anything, lead).Return(nil)

	scheduler := NewScheduler(repo, slog.Default())

	stats, err := scheduler.RunOnce(t.Context(), inWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RepliesDetected)
	assert.Equal(t, models.LeadStatusReplied, lead.Status)
	assert.Nil(t, lead.NextActionAt)
	repo.AssertNotCalled(t, "CreateAction", mock.Anything, mock.Anything)
}

func TestRunOnceNoReplySchedulesNextEnabledStep(t *testing.T) {
	campaign := testCampaign()
	lastOutbound := inWindow.Add(-48 * time.Hour)
	lead := &models.CampaignLead{
		ID:             "l-1",
		CampaignID:     "c-1",
		Status:         models.LeadStatusConnected,
		CurrentStep:    1,
		LastOutboundAt: &lastOutbound,
		Fields:         map[string]string{"firstName": "Ada"},
	}

	repo := &mocks.MockCampaignRepository{}
	repo.On("ListActive", mock.Anything).Return([]*models.LinkedInCampaign{campaign}, nil)
	repo.On("LeadsDue", mock.Anything, "c-1", inWindow, 25).Return([]*models.CampaignLead{lead}, nil)
	repo.On("HasPendingAction", mock.Anything, "l-1").Return(false, nil)
	repo.On("InboundAfter", mock.Anything, "l-1", lastOutbound).Return(false, nil)
	repo.On("CreateAction", mock.Anything, mock.MatchedBy(func(action *models.LeadAction) bool {
		// Step 2 is disabled; step 3 is the next enabled one.
		return action.Type == models.CampaignStepMessage && action.Content == "Following up, Ada"
	})).Return(nil).Once()
	repo.On("SaveLead", mock.Anything, lead).Return(nil)

	scheduler := NewScheduler(repo, slog.Default())

	stats, err := scheduler.RunOnce(t.Context(), inWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActionsCreated)
	assert.Equal(t, 3, lead.CurrentStep)
	repo.AssertExpectations(t)
}

func TestRunOnceNoNextStepCompletesLead(t *testing.T) {
	campaign := testCampaign()
	lead := &models.CampaignLead{
		ID:          "l-1",
		CampaignID:  "c-1",
		Status:      models.LeadStatusAwaitingReply,
		CurrentStep: 3,
	}

	repo := &mocks.MockCampaignRepository{}
	repo.On("ListActive", mock.Anything).Return([]*models.LinkedInCampaign{campaign}, nil)
	repo.On("LeadsDue", mock.Anything, "c-1", inWindow, 25).Return([]*models.CampaignLead{lead}, nil)
	repo.On("HasPendingAction", mock.Anything, "l-1").Return(false, nil)
	repo.On("SaveLead", mock.Anything, lead).Return(nil)

	scheduler := NewScheduler(repo, slog.Default())

	stats, err := scheduler.RunOnce(t.Context(), inWindow)
	require.NoError(t, err)
	assert.Zero(t, stats.ActionsCreated)
	assert.Equal(t, models.LeadStatusCompleted, lead.Status)
}
