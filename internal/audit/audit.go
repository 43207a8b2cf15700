// Package audit records processing events for each inspected item. Records
// carry identifiers and outcomes only; license keys and decrypted content
// never appear in them.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Processing statuses.
const (
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailure    = "FAILURE"
)

// Event is one processing record. An event is created as PROCESSING when work
// starts and updated exactly once with the terminal status.
type Event struct {
	EventID       string
	ItemID        string
	Bucket        string
	ObjectKey     string
	Reason        string
	Status        string
	FailureReason string
	DRMType       string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Recorder persists events.
type Recorder interface {
	Create(ctx context.Context, ev Event) error
	Update(ctx context.Context, ev Event) error
}

// NewEvent builds a PROCESSING event with a fresh identifier.
func NewEvent(itemID, bucket, objectKey, reason string) Event {
	return Event{
		EventID:   uuid.NewString(),
		ItemID:    itemID,
		Bucket:    bucket,
		ObjectKey: objectKey,
		Reason:    reason,
		Status:    StatusProcessing,
		StartedAt: time.Now().UTC(),
	}
}

// Succeed marks the event terminal with SUCCESS.
func (e *Event) Succeed(drmType string) {
	e.Status = StatusSuccess
	e.DRMType = drmType
	e.FinishedAt = time.Now().UTC()
}

// Fail marks the event terminal with FAILURE and the reason.
func (e *Event) Fail(reason string) {
	e.Status = StatusFailure
	e.FailureReason = reason
	e.FinishedAt = time.Now().UTC()
}
