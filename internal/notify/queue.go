package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue moves encoded events from the API to the workers. MemoryQueue and
// SQSQueue implement it.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one received payload.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

func encodeEvent(evt Event) (Event, string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return Event{}, "", fmt.Errorf("notify: encode event: %w", err)
	}
	return evt, string(body), nil
}

func decodeEvent(body string) (Event, error) {
	var evt Event
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		return Event{}, fmt.Errorf("notify: decode event: %w", err)
	}
	return evt, nil
}
