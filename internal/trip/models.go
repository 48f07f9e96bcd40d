package trip

import "time"

const (
	StatusScheduled  = "SCHEDULED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

const (
	TypeMorning   = "MORNING"
	TypeAfternoon = "AFTERNOON"
)

type Session struct {
	ID            string    `json:"id"`
	GroupID       string    `json:"group_id"`
	DriverID      string    `json:"driver_id"`
	TripType      string    `json:"trip_type"`
	ScheduledDate time.Time `json:"scheduled_date"`
	ScheduledTime string    `json:"scheduled_time"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LookupOutcome tags ActiveSession results so callers can tell a missing
// trip from one in the wrong lifecycle state from a storage failure.
type LookupOutcome int

const (
	LookupFound LookupOutcome = iota
	LookupNotFound
	LookupWrongStatus
	LookupStorageFault
)

type Lookup struct {
	Outcome LookupOutcome
	Session Session
	Status  string
	Err     error
}
