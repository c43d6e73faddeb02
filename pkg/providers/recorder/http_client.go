package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient talks to the recording provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a recorder client for the given API endpoint.
func NewHTTPClient(baseURL, apiKey string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.With("module", "recorder_client"),
	}
}

func (c *HTTPClient) CreateBot(ctx context.Context, meetingURL, webhookURL string) (string, error) {
	payload := map[string]string{
		"meeting_url": meetingURL,
		"webhook_url": webhookURL,
	}

	var response struct {
		BotID string `json:"bot_id"`
	}

	err := c.do(ctx, http.MethodPost, "/bots", payload, &response)
	if err != nil {
		return "", fmt.Errorf("failed to create recording bot: %w", err)
	}

	return response.BotID, nil
}

func (c *HTTPClient) FetchRecording(ctx context.Context, botID string) (string, error) {
	var response struct {
		RecordingURL string `json:"recording_url"`
	}

	err := c.do(ctx, http.MethodGet, "/bots/"+botID+"/recording", nil, &response)
	if err != nil {
		return "", fmt.Errorf("failed to fetch recording for bot %s: %w", botID, err)
	}

	return response.RecordingURL, nil
}

func (c *HTTPClient) FetchTranscript(ctx context.Context, botID string) (string, error) {
	var response struct {
		Transcript string `json:"transcript"`
	}

	err := c.do(ctx, http.MethodGet, "/bots/"+botID+"/transcript", nil, &response)
	if err != nil {
		return "", fmt.Errorf("failed to fetch transcript for bot %s: %w", botID, err)
	}

	return response.Transcript, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, response any) error {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("recorder API returned %d: %s", resp.StatusCode, string(data))
	}

	if response == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
