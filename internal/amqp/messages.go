package amqp

import (
	"encoding/json"
	"time"
)

// BatchCompletedMessage announces that a planner run finished and its
// execution batch is persisted. Consumers fetch the full batch from
// storage by ID; the message itself stays small.
type BatchCompletedMessage struct {
	BatchID          string    `json:"batch_id"`
	ExecutionDate    time.Time `json:"execution_date"`
	CreatedCount     int       `json:"created_count"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewBatchCompletedMessage builds a message for a finished batch.
func NewBatchCompletedMessage(batchID string, executionDate time.Time, createdCount int, totalAmountCents int64) *BatchCompletedMessage {
	return &BatchCompletedMessage{
		BatchID:          batchID,
		ExecutionDate:    executionDate,
		CreatedCount:     createdCount,
		TotalAmountCents: totalAmountCents,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *BatchCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BatchCompletedMessageFromJSON decodes a message from JSON bytes.
func BatchCompletedMessageFromJSON(data []byte) (*BatchCompletedMessage, error) {
	var msg BatchCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
