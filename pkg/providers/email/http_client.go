package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient talks to the email provider's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates an email client for the given API endpoint.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.With("module", "email_client"),
	}
}

func (c *HTTPClient) Send(ctx context.Context, accessToken string, message Message) (*SendResult, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	// Providers report hard bounces and invalid recipients as 422 with
	// a bounce error class in the body.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		var apiError struct {
			Class string `json:"error_class"`
		}

		if json.Unmarshal(body, &apiError) == nil && apiError.Class == "bounce" {
			return nil, fmt.Errorf("%w: %s", ErrBounced, message.To)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("email API returned %d: %s", resp.StatusCode, string(body))
	}

	var result SendResult

	err = json.Unmarshal(body, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode send result: %w", err)
	}

	return &result, nil
}

// HasInboundAfter queries the provider's message store for any inbound
// message from contactEmail received after since.
func (c *HTTPClient) HasInboundAfter(ctx context.Context, accessToken, contactEmail string, since time.Time) (bool, error) {
	endpoint := fmt.Sprintf("%s/messages/inbound?from=%s&since=%s",
		c.baseURL, url.QueryEscape(contactEmail), url.QueryEscape(since.UTC().Format(time.RFC3339)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Errorf("email API returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Count int `json:"count"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("failed to decode inbound query result: %w", err)
	}

	return result.Count > 0, nil
}
