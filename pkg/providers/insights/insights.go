// Package insights hands finished meetings off to the external
// insight-generation pipeline.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// Client triggers insight generation for a finished meeting. The
// handoff is fire-and-forget: the pipeline reports nothing back to the
// workflow.
type Client interface {
	Trigger(ctx context.Context, meetingID, tenantID, userID string) error
}

// HTTPClient posts trigger requests to the insights service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates an insights client for the given endpoint.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.With("module", "insights_client"),
	}
}

func (c *HTTPClient) Trigger(ctx context.Context, meetingID, tenantID, userID string) error {
	payload := map[string]string{
		"meeting_id": meetingID,
		"tenant_id":  tenantID,
		"user_id":    userID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/insights/generate", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

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
		return fmt.Errorf("insights API returned %d", resp.StatusCode)
	}

	return nil
}
