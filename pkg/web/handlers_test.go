package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/outfield-crm/outfield/pkg/eventbus"
	"github.com/outfield-crm/outfield/pkg/events"
	"github.com/outfield-crm/outfield/pkg/mocks"
	"github.com/outfield-crm/outfield/pkg/persistence/file"
	"github.com/outfield-crm/outfield/pkg/web"
	"github.com/outfield-crm/outfield/pkg/workflows/meetingbot"
)

func setupTestApp(t *testing.T) (*fiber.App, *mocks.MockEventBus) {
	t.Helper()

	bus := &mocks.MockEventBus{}
	persistence := file.NewPersistence(t.TempDir())
	handlers := web.NewWebhookHandlers(bus, persistence, slog.Default())

	return web.NewApp(handlers), bus
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestRecorderStatusPublishesSignal(t *testing.T) {
	app, bus := setupTestApp(t)

	bus.On("Publish", mock.Anything, "wf-1", mock.MatchedBy(func(event eventbus.Event) bool {
		signal, ok := event.(events.SignalReceived)

		return ok &&
			signal.WorkflowID == "wf-1" &&
			signal.SignalName == meetingbot.SignalBotStatusChanged
	})).Return(nil)

	resp := postJSON(t, app, "/webhooks/recorder/wf-1", map[string]any{"status": "in_call_recording"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	bus.AssertExpectations(t)
}

func TestRecorderStatusRejectsMissingStatus(t *testing.T) {
	app, bus := setupTestApp(t)

	resp := postJSON(t, app, "/webhooks/recorder/wf-1", map[string]any{"bot_id": "bot-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "validation")
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecorderCancelPublishesCancelSignal(t *testing.T) {
	app, bus := setupTestApp(t)

	bus.On("Publish", mock.Anything, "wf-1", mock.MatchedBy(func(event eventbus.Event) bool {
		signal, ok := event.(events.SignalReceived)

		return ok && signal.SignalName == meetingbot.SignalCancelBot
	})).Return(nil)

	resp := postJSON(t, app, "/webhooks/recorder/wf-1/cancel", map[string]any{})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	bus.AssertExpectations(t)
}

func TestEmailEventPublishesNamedSignal(t *testing.T) {
	app, bus := setupTestApp(t)

	bus.On("Publish", mock.Anything, "wf-2", mock.MatchedBy(func(event eventbus.Event) bool {
		signal, ok := event.(events.SignalReceived)

		return ok && signal.SignalName == "email-bounce"
	})).Return(nil)

	resp := postJSON(t, app, "/webhooks/email/wf-2", map[string]any{"event": "bounce", "external_id": "ext-1"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	bus.AssertExpectations(t)
}

func TestPublishFailureReturnsProblem(t *testing.T) {
	app, bus := setupTestApp(t)

	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	resp := postJSON(t, app, "/webhooks/recorder/wf-1", map[string]any{"status": "done"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Type"), "json")
	assert.Contains(t, string(body), "internal_error")
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
