// Package email integrates the outbound email provider used by
// sequence enrollment sends.
package email

import (
	"context"
	"errors"
	"time"
)

// ErrBounced marks a hard bounce or invalid recipient. It is a
// business-terminal condition, not a transient failure: callers must
// not retry a bounced send.
var ErrBounced = errors.New("recipient address bounced")

// Message is one outbound email.
type Message struct {
	To      string `json:"to"      validate:"required,email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendResult identifies the sent message at the provider.
type SendResult struct {
	ExternalID       string `json:"external_id"`
	ExternalThreadID string `json:"external_thread_id"`
}

// Client is the narrow surface enrollment sends and reply detection
// need from the email provider. HasInboundAfter is the authoritative
// reply check: it queries the provider's message store instead of
// trusting cached timestamps.
type Client interface {
	Send(ctx context.Context, accessToken string, message Message) (*SendResult, error)
	HasInboundAfter(ctx context.Context, accessToken, contactEmail string, since time.Time) (bool, error)
}
