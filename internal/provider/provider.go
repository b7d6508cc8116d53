package provider

import (
	"context"
	"time"
)

// SendRequest describes one outbound SMS. ScheduledAt, when set, asks the
// provider to hold the message until that instant. IdempotencyKey makes a
// repeated request with the same key a no-op on the provider side.
type SendRequest struct {
	To             string
	From           string
	Body           string
	ScheduledAt    *time.Time
	IdempotencyKey string
}

// SendResponse stores the provider call result for audit and persistence.
type SendResponse struct {
	ProviderMessageID string
	Status            string
	ScheduledAt       *time.Time
	StatusCode        int
	Body              string
}

// Channel is the outbound SMS delivery port.
type Channel interface {
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
}
