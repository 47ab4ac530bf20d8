package queue

import (
	"fmt"
	"strings"
)

// BatchMessage is the broker payload that triggers processing of one bulk
// send batch.
type BatchMessage struct {
	BatchID       string `json:"batchId"`
	ListID        string `json:"listId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m BatchMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if strings.TrimSpace(m.ListID) == "" {
		return fmt.Errorf("listId is required")
	}
	return nil
}
