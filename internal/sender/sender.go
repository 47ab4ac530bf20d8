package sender

import (
	"context"

	"github.com/signhub/envelope-engine/internal/domain"
)

// Sender is the outbound port that transitions an envelope to sent: it
// delivers the signing request notification to the envelope's recipients.
type Sender interface {
	Send(ctx context.Context, envelope domain.Envelope) (*DeliveryResponse, error)
}

// DeliveryResponse stores gateway call metadata for audit and logging.
type DeliveryResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
