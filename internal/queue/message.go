package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
)

// StatusEvent is the broker payload for one provider delivery-status
// callback.
type StatusEvent struct {
	ProviderMessageID string    `json:"providerMessageId"`
	MessageStatus     string    `json:"messageStatus"`
	ErrorCode         string    `json:"errorCode,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

func (e StatusEvent) Validate() error {
	if strings.TrimSpace(e.ProviderMessageID) == "" {
		return fmt.Errorf("providerMessageId is required")
	}
	if strings.TrimSpace(e.MessageStatus) == "" {
		return fmt.Errorf("messageStatus is required")
	}
	return nil
}

// DispatchStatus maps the provider's status vocabulary onto the dispatch
// log's. Unknown values return false and leave the log untouched.
func (e StatusEvent) DispatchStatus() (domain.DispatchStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(e.MessageStatus)) {
	case "delivered":
		return domain.DispatchDelivered, true
	case "sent":
		return domain.DispatchSent, true
	case "undelivered", "failed":
		return domain.DispatchUndelivered, true
	}
	return "", false
}
