package amqp

import (
	"testing"
	"time"
)

func TestBatchCompletedMessage_RoundTrip(t *testing.T) {
	execDate := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)
	msg := NewBatchCompletedMessage("b-123", execDate, 4, 125000)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := BatchCompletedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("BatchCompletedMessageFromJSON() error = %v", err)
	}

	if got.BatchID != "b-123" {
		t.Errorf("BatchID = %q, want %q", got.BatchID, "b-123")
	}
	if !got.ExecutionDate.Equal(execDate) {
		t.Errorf("ExecutionDate = %v, want %v", got.ExecutionDate, execDate)
	}
	if got.CreatedCount != 4 {
		t.Errorf("CreatedCount = %d, want 4", got.CreatedCount)
	}
	if got.TotalAmountCents != 125000 {
		t.Errorf("TotalAmountCents = %d, want 125000", got.TotalAmountCents)
	}
}

func TestBatchCompletedMessageFromJSON_Malformed(t *testing.T) {
	if _, err := BatchCompletedMessageFromJSON([]byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
