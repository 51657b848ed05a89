package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDepartmentCreated EventType = "department_created"
	EventDepartmentUpdated EventType = "department_updated"
	EventDepartmentDeleted EventType = "department_deleted"
)

// Actor identifies the operator that caused an event.
type Actor struct {
	OperatorID *int64 `json:"operator_id,omitempty"`
	Username   string `json:"username"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	DepartmentIDs []int64   `json:"department_ids"`
	Actor         Actor     `json:"actor"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, actor Actor, departmentIDs []int64, payload any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		DepartmentIDs: departmentIDs,
		Actor:         actor,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}
}

// DepartmentChangedPayload describes a created or updated department.
type DepartmentChangedPayload struct {
	Name        string `json:"name"`
	ParentID    int64  `json:"parent_id"`
	OldParentID *int64 `json:"old_parent_id,omitempty"`
	Status      int16  `json:"status"`
}

// DepartmentDeletedPayload lists the departments removed by one request.
type DepartmentDeletedPayload struct {
	Names []string `json:"names"`
}
