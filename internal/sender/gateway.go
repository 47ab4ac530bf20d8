package sender

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/signhub/envelope-engine/internal/domain"
)

const defaultGatewayTimeout = 10 * time.Second

type deliveryRecipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type deliveryRequest struct {
	EnvelopeID string              `json:"envelopeId"`
	AccountID  string              `json:"accountId"`
	Subject    string              `json:"subject"`
	Message    string              `json:"message,omitempty"`
	Recipients []deliveryRecipient `json:"recipients"`
}

// GatewayDeliverySender delivers signing request notifications through the
// HTTP delivery gateway.
type GatewayDeliverySender struct {
	client   *resty.Client
	endpoint string
}

func NewGatewayDeliverySender(endpoint string) (*GatewayDeliverySender, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return NewGatewayDeliverySenderWithClient(endpoint, client)
}

func NewGatewayDeliverySenderWithClient(endpoint string, client *resty.Client) (*GatewayDeliverySender, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("delivery gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid delivery gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &GatewayDeliverySender{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (s *GatewayDeliverySender) Send(ctx context.Context, envelope domain.Envelope) (*DeliveryResponse, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sender is not initialized")
	}
	if err := envelope.Validate(); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	recipients := make([]deliveryRecipient, 0, len(envelope.Recipients))
	for _, r := range envelope.Recipients {
		recipients = append(recipients, deliveryRecipient{Name: r.Name, Email: r.Email})
	}

	reqBody := deliveryRequest{
		EnvelopeID: envelope.ID,
		AccountID:  envelope.AccountID,
		Subject:    envelope.EmailSubject,
		Message:    envelope.EmailMessage,
		Recipients: recipients,
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(s.endpoint)
	if err != nil {
		return nil, &DeliveryError{
			Message:   "delivery request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &DeliveryError{
			Message:   "gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &DeliveryResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  gatewayMessageID(response),
		}, nil
	}

	return nil, &DeliveryError{
		StatusCode: statusCode,
		Message:    gatewayErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func gatewayErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func gatewayMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
