package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/outfield-crm/outfield/pkg/models"
)

// MockMeetingRepository mocks persistence.MeetingRepository.
type MockMeetingRepository struct {
	mock.Mock
}

func (m *MockMeetingRepository) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) Save(ctx context.Context, meeting *models.Meeting) error {
	args := m.Called(ctx, meeting)

	return args.Error(0)
}

// MockEnrollmentRepository mocks persistence.EnrollmentRepository.
type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) GetByID(ctx context.Context, id string) (*models.SequenceEnrollment, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.SequenceEnrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) Save(ctx context.Context, enrollment *models.SequenceEnrollment) error {
	args := m.Called(ctx, enrollment)

	return args.Error(0)
}

func (m *MockEnrollmentRepository) StepsBySequence(ctx context.Context, sequenceID string) ([]*models.SequenceStep, error) {
	args := m.Called(ctx, sequenceID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.SequenceStep), args.Error(1)
}

func (m *MockEnrollmentRepository) SaveStep(ctx context.Context, step *models.SequenceStep) error {
	args := m.Called(ctx, step)

	return args.Error(0)
}

func (m *MockEnrollmentRepository) RecordEvent(ctx context.Context, event *models.EnrollmentEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockEnrollmentRepository) EventsByEnrollment(ctx context.Context, enrollmentID string) ([]*models.EnrollmentEvent, error) {
	args := m.Called(ctx, enrollmentID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.EnrollmentEvent), args.Error(1)
}

// MockCampaignRepository mocks persistence.CampaignRepository.
type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) ListActive(ctx context.Context) ([]*models.LinkedInCampaign, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.LinkedInCampaign), args.Error(1)
}

func (m *MockCampaignRepository) Save(ctx context.Context, campaign *models.LinkedInCampaign) error {
	args := m.Called(ctx, campaign)

	return args.Error(0)
}

func (m *MockCampaignRepository) LeadsDue(ctx context.Context, campaignID string, at time.Time, limit int) ([]*models.CampaignLead, error) {
	args := m.Called(ctx, campaignID, at, limit)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.CampaignLead), args.Error(1)
}

func (m *MockCampaignRepository) SaveLead(ctx context.Context, lead *models.CampaignLead) error {
	args := m.Called(ctx, lead)

	return args.Error(0)
}

func (m *MockCampaignRepository) HasPendingAction(ctx context.Context, leadID string) (bool, error) {
	args := m.Called(ctx, leadID)

	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepository) CreateAction(ctx context.Context, action *models.LeadAction) error {
	args := m.Called(ctx, action)

	return args.Error(0)
}

func (m *MockCampaignRepository) ActionsByLead(ctx context.Context, leadID string) ([]*models.LeadAction, error) {
	args := m.Called(ctx, leadID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.LeadAction), args.Error(1)
}

func (m *MockCampaignRepository) RecordMessage(ctx context.Context, message *models.LeadMessage) error {
	args := m.Called(ctx, message)

	return args.Error(0)
}

func (m *MockCampaignRepository) InboundAfter(ctx context.Context, leadID string, since time.Time) (bool, error) {
	args := m.Called(ctx, leadID, since)

	return args.Bool(0), args.Error(1)
}

// MockPolicyRepository mocks persistence.PolicyRepository.
type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) ForUser(ctx context.Context, tenantID, userID string) (*models.RecordingPolicy, error) {
	args := m.Called(ctx, tenantID, userID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.RecordingPolicy), args.Error(1)
}

func (m *MockPolicyRepository) ForTenant(ctx context.Context, tenantID string) (*models.RecordingPolicy, error) {
	args := m.Called(ctx, tenantID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.RecordingPolicy), args.Error(1)
}

func (m *MockPolicyRepository) Save(ctx context.Context, policy *models.RecordingPolicy) error {
	args := m.Called(ctx, policy)

	return args.Error(0)
}

// MockCalendarRepository mocks persistence.CalendarRepository.
type MockCalendarRepository struct {
	mock.Mock
}

func (m *MockCalendarRepository) UpcomingEvents(ctx context.Context, from, until time.Time) ([]*models.CalendarEvent, error) {
	args := m.Called(ctx, from, until)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.CalendarEvent), args.Error(1)
}

func (m *MockCalendarRepository) Save(ctx context.Context, event *models.CalendarEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockCalendarRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockTenantRepository mocks persistence.TenantRepository.
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Save(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)

	return args.Error(0)
}
