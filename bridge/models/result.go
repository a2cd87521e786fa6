package models

import (
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of one bridge call. The same Result is pushed to the
// host as an event and returned as the HTTP body.
type Result struct {
	Event  string `json:"event"` // e.g. "onTransfer" or "onTransferFailed"
	Data   any    `json:"data"`
	Failed bool   `json:"failed"`
}

// Success builds the result of a completed call.
func Success(event string, data any) Result {
	return Result{Event: event, Data: data}
}

// Failure builds the result of a failed call. The event name gets the
// "Failed" suffix.
func Failure(event, code string, err error) Result {
	return Result{
		Event:  event + "Failed",
		Data:   ErrorResponse{Error: err.Error(), Code: code},
		Failed: true,
	}
}

// Event is one message on the host event stream.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent wraps a result for publishing.
func NewEvent(r Result) Event {
	return Event{
		ID:        uuid.New(),
		Name:      r.Event,
		Data:      r.Data,
		Timestamp: time.Now().UTC(),
	}
}
