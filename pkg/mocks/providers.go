// Package mocks provides testify mocks for the external collaborators
// and repositories used across test suites.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/outfield-crm/outfield/pkg/providers/email"
)

// MockRecorderClient mocks the recording-bot provider.
type MockRecorderClient struct {
	mock.Mock
}

func (m *MockRecorderClient) CreateBot(ctx context.Context, meetingURL, webhookURL string) (string, error) {
	args := m.Called(ctx, meetingURL, webhookURL)

	return args.String(0), args.Error(1)
}

func (m *MockRecorderClient) FetchRecording(ctx context.Context, botID string) (string, error) {
	args := m.Called(ctx, botID)

	return args.String(0), args.Error(1)
}

func (m *MockRecorderClient) FetchTranscript(ctx context.Context, botID string) (string, error) {
	args := m.Called(ctx, botID)

	return args.String(0), args.Error(1)
}

// MockEmailClient mocks the outbound email provider.
type MockEmailClient struct {
	mock.Mock
}

func (m *MockEmailClient) Send(ctx context.Context, accessToken string, message email.Message) (*email.SendResult, error) {
	args := m.Called(ctx, accessToken, message)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*email.SendResult), args.Error(1)
}

func (m *MockEmailClient) HasInboundAfter(ctx context.Context, accessToken, contactEmail string, since time.Time) (bool, error) {
	args := m.Called(ctx, accessToken, contactEmail, since)

	return args.Bool(0), args.Error(1)
}

// MockInsightsClient mocks the insight-generation collaborator.
type MockInsightsClient struct {
	mock.Mock
}

func (m *MockInsightsClient) Trigger(ctx context.Context, meetingID, tenantID, userID string) error {
	args := m.Called(ctx, meetingID, tenantID, userID)

	return args.Error(0)
}
