// Package recorder integrates the external meeting-recording-bot
// provider. Asynchronous bot status updates come back through the
// webhook ingress, not through this client.
package recorder

import "context"

// Client is the narrow surface the meeting-bot workflow needs from the
// recording provider.
type Client interface {
	// CreateBot dispatches a recording bot to the meeting and returns
	// the provider's bot ID. Status updates are delivered to webhookURL.
	CreateBot(ctx context.Context, meetingURL, webhookURL string) (string, error)
	// FetchRecording returns the downloadable recording asset URL for a
	// finished bot.
	FetchRecording(ctx context.Context, botID string) (string, error)
	// FetchTranscript returns the processed transcript text.
	FetchTranscript(ctx context.Context, botID string) (string, error)
}

// Bot status values reported through the provider webhook.
const (
	StatusInCallRecording = "in_call_recording"
	StatusCallEnded       = "call_ended"
	StatusAnalysisDone    = "analysis_done"
	StatusDone            = "done"
	StatusFatal           = "fatal"
)
