package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendTimeout = 10 * time.Second

type smsSendRequest struct {
	To          string `json:"to"`
	From        string `json:"from"`
	Body        string `json:"body"`
	ScheduledAt string `json:"scheduledAt,omitempty"`
}

type smsSendResponse struct {
	MessageID   string `json:"messageId"`
	Status      string `json:"status"`
	ScheduledAt string `json:"scheduledAt,omitempty"`
}

var _ Channel = (*WebhookSMSChannel)(nil)

// WebhookSMSChannel delivers through an HTTP SMS gateway. The gateway is
// expected to honor the Idempotency-Key header and answer 409 for a key
// it has already accepted.
type WebhookSMSChannel struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookSMSChannel(endpoint string) (*WebhookSMSChannel, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewWebhookSMSChannelWithClient(endpoint, client)
}

func NewWebhookSMSChannelWithClient(endpoint string, client *resty.Client) (*WebhookSMSChannel, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("sms gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid sms gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookSMSChannel{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (c *WebhookSMSChannel) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("channel is not initialized")
	}
	if strings.TrimSpace(req.To) == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, fmt.Errorf("body is required")
	}

	reqBody := smsSendRequest{
		To:   req.To,
		From: req.From,
		Body: req.Body,
	}
	if req.ScheduledAt != nil {
		reqBody.ScheduledAt = req.ScheduledAt.UTC().Format(time.RFC3339)
	}

	request := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody)
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		request.SetHeader("Idempotency-Key", key)
	}

	response, err := request.Post(c.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "provider returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return parseSendResponse(statusCode, responseBody, response)
	}

	if statusCode == http.StatusConflict {
		return nil, &ProviderError{
			StatusCode: statusCode,
			Message:    "duplicate idempotency key",
			Duplicate:  true,
		}
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func parseSendResponse(statusCode int, body string, response *resty.Response) (*SendResponse, error) {
	resp := &SendResponse{
		StatusCode: statusCode,
		Body:       body,
	}

	var parsed smsSendResponse
	if body != "" && json.Unmarshal([]byte(body), &parsed) == nil {
		resp.ProviderMessageID = strings.TrimSpace(parsed.MessageID)
		resp.Status = strings.TrimSpace(parsed.Status)
		if parsed.ScheduledAt != "" {
			if at, err := time.Parse(time.RFC3339, parsed.ScheduledAt); err == nil {
				resp.ScheduledAt = &at
			}
		}
	}

	if resp.ProviderMessageID == "" {
		resp.ProviderMessageID = headerMessageID(response)
	}

	return resp, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func headerMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
