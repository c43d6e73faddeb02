package enrollment

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/outfield-crm/outfield/pkg/mocks"
	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/providers/email"
)

func activeEnrollment() *models.SequenceEnrollment {
	return &models.SequenceEnrollment{
		ID:                "e-1",
		TenantID:          "t-1",
		SequenceID:        "seq-1",
		ContactEmail:      "carol@partner.com",
		Status:            models.EnrollmentStatusActive,
		CurrentStepNumber: 1,
		TotalSteps:        2,
	}
}

func marshalInput(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}

func TestLoadSnapshotsCurrentStep(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	enrollment := activeEnrollment()

	repo.On("GetByID", mock.Anything, "e-1").Return(enrollment, nil)
	repo.On("StepsBySequence", mock.Anything, "seq-1").Return([]*models.SequenceStep{
		{SequenceID: "seq-1", Number: 1, Type: models.StepTypeEmail, Enabled: true, Subject: "Hello"},
		{SequenceID: "seq-1", Number: 2, Type: models.StepTypeEmail, Enabled: true, DelayDays: 1},
	}, nil)

	activities := NewActivities(repo, &mocks.MockEmailClient{}, "token", slog.Default())

	result, err := activities.Load(t.Context(), marshalInput(t, loadInput{EnrollmentID: "e-1"}))
	require.NoError(t, err)

	loaded, ok := result.(loadResult)
	require.True(t, ok)
	assert.True(t, loaded.Active)
	assert.True(t, loaded.StepFound)
	assert.True(t, loaded.FirstStep)
	assert.Equal(t, "Hello", loaded.Step.Subject)
}

func TestLoadInactiveSkipsStepLookup(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	enrollment := activeEnrollment()
	enrollment.Status = models.EnrollmentStatusPaused

	repo.On("GetByID", mock.Anything, "e-1").Return(enrollment, nil)

	activities := NewActivities(repo, &mocks.MockEmailClient{}, "token", slog.Default())

	result, err := activities.Load(t.Context(), marshalInput(t, loadInput{EnrollmentID: "e-1"}))
	require.NoError(t, err)

	loaded, ok := result.(loadResult)
	require.True(t, ok)
	assert.False(t, loaded.Active)
	repo.AssertNotCalled(t, "StepsBySequence", mock.Anything, mock.Anything)
}

func TestSendEmailRecordsOutboundAndEvent(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	client := &mocks.MockEmailClient{}
	enrollment := activeEnrollment()

	repo.On("GetByID", mock.Anything, "e-1").Return(enrollment, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	repo.On("RecordEvent", mock.Anything, mock.MatchedBy(func(event *models.EnrollmentEvent) bool {
		return event.Type == EventEmailSent && event.StepNumber == 1
	})).Return(nil)
	client.On("Send", mock.Anything, "token", email.Message{
		To:      "carol@partner.com",
		Subject: "Hello",
		Body:    "Hi there",
	}).Return(&email.SendResult{ExternalID: "ext-1"}, nil)

	activities := NewActivities(repo, client, "token", slog.Default())

	result, err := activities.SendEmail(t.Context(), marshalInput(t, sendEmailInput{
		EnrollmentID: "e-1",
		StepNumber:   1,
		Subject:      "Hello",
		Body:         "Hi there",
	}))
	require.NoError(t, err)

	sent, ok := result.(sendEmailResult)
	require.True(t, ok)
	assert.False(t, sent.Bounced)
	assert.Equal(t, "ext-1", sent.ExternalID)
	assert.NotNil(t, enrollment.LastOutboundAt)
	repo.AssertExpectations(t)
}

func TestSendEmailBounceMarksEnrollmentAfterOneAttempt(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	client := &mocks.MockEmailClient{}
	enrollment := activeEnrollment()

	repo.On("GetByID", mock.Anything, "e-1").Return(enrollment, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	repo.On("RecordEvent", mock.Anything, mock.MatchedBy(func(event *models.EnrollmentEvent) bool {
		return event.Type == EventEmailBounced
	})).Return(nil)
	client.On("Send", mock.Anything, "token", mock.Anything).
		Return(nil, fmt.Errorf("%w: carol@partner.com", email.ErrBounced)).
		Once()

	activities := NewActivities(repo, client, "token", slog.Default())

	result, err := activities.SendEmail(t.Context(), marshalInput(t, sendEmailInput{
		EnrollmentID: "e-1",
		StepNumber:   1,
	}))
	require.NoError(t, err)

	sent, ok := result.(sendEmailResult)
	require.True(t, ok)
	assert.True(t, sent.Bounced)
	assert.Equal(t, models.EnrollmentStatusBounced, enrollment.Status)
	client.AssertNumberOfCalls(t, "Send", 1)
}

func TestCheckReplyFlipsEnrollmentToReplied(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	client := &mocks.MockEmailClient{}
	enrollment := activeEnrollment()
	lastOutbound := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	enrollment.LastOutboundAt = &lastOutbound

	repo.On("GetByID", mock.Anything, "e-1").Return(enrollment, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	repo.On("RecordEvent", mock.Anything, mock.MatchedBy(func(event *models.EnrollmentEvent) bool {
		return event.Type == EventReplyDetected
	})).Return(nil)
	client.On("HasInboundAfter", mock.Anything, "token", "carol@partner.com", lastOutbound).Return(true, nil)

	activities := NewActivities(repo, client, "token", slog.Default())

	result, err := activities.CheckReply(t.Context(), marshalInput(t, checkReplyInput{EnrollmentID: "e-1"}))
	require.NoError(t, err)

	check, ok := result.(checkReplyResult)
	require.True(t, ok)
	assert.True(t, check.Replied)
	assert.Equal(t, models.EnrollmentStatusReplied, enrollment.Status)
}

func TestCheckReplyWithoutOutboundSkipsQuery(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	client := &mocks.MockEmailClient{}

	repo.On("GetByID", mock.Anything, "e-1").Return(activeEnrollment(), nil)

	activities := NewActivities(repo, client, "token", slog.Default())

	result, err := activities.CheckReply(t.Context(), marshalInput(t, checkReplyInput{EnrollmentID: "e-1"}))
	require.NoError(t, err)

	check, ok := result.(checkReplyResult)
	require.True(t, ok)
	assert.True(t, check.Active)
	assert.False(t, check.Replied)
	client.AssertNotCalled(t, "HasInboundAfter", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvanceSchedulesNextStep(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	enrollment := activeEnrollment()

	repo.On("GetByID", mock.Anything, "e-1").Return(enrollment, nil)
	repo.On("StepsBySequence", mock.Anything, "seq-1").Return([]*models.SequenceStep{
		{SequenceID: "seq-1", Number: 2, Type: models.StepTypeEmail, Enabled: true, DelayDays: 1},
	}, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	activities := NewActivities(repo, &mocks.MockEmailClient{}, "token", slog.Default())

	result, err := activities.Advance(t.Context(), marshalInput(t, advanceInput{EnrollmentID: "e-1"}))
	require.NoError(t, err)

	advanced, ok := result.(advanceResult)
	require.True(t, ok)
	assert.False(t, advanced.Completed)
	assert.Equal(t, 2, enrollment.CurrentStepNumber)
	require.NotNil(t, enrollment.NextScheduledAt)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), *enrollment.NextScheduledAt, time.Minute)
}

func TestAdvancePastLastStepCompletes(t *testing.T) {
	repo := &mocks.MockEnrollmentRepository{}
	enrollment := activeEnrollment()
	enrollment.CurrentStepNumber = 2

	repo.On("GetByID", mock.Anything, "e-1").Return(enrollment, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	activities := NewActivities(repo, &mocks.MockEmailClient{}, "token", slog.Default())

	result, err := activities.Advance(t.Context(), marshalInput(t, advanceInput{EnrollmentID: "e-1"}))
	require.NoError(t, err)

	advanced, ok := result.(advanceResult)
	require.True(t, ok)
	assert.True(t, advanced.Completed)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	assert.Nil(t, enrollment.NextScheduledAt)
}
