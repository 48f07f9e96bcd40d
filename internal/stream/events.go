package stream

import "encoding/json"

// Wire protocol: every frame in either direction is an Envelope. Inbound
// Data is decoded per event (a bare trip id string for join/leave, a
// location sample for location-update).
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	EventJoinTrip        = "join-trip"
	EventLeaveTrip       = "leave-trip"
	EventLocationUpdate  = "location-update"
	EventJoinedTrip      = "joined-trip"
	EventLeftTrip        = "left-trip"
	EventLocationHistory = "location-history"
	EventError           = "error"
)

// ErrorPayload carries an explicit kind next to the human-readable message
// so clients can react per failure class instead of parsing text.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeAuthFailed        = "AUTH_FAILED"
	CodeBadRequest        = "BAD_REQUEST"
	CodeTripNotActive     = "TRIP_NOT_ACTIVE"
	CodeTripNotFound      = "TRIP_NOT_FOUND"
	CodeTripNotInProgress = "TRIP_NOT_IN_PROGRESS"
	CodeInvalidSample     = "INVALID_SAMPLE"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeStorageFault      = "STORAGE_FAULT"
)

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
