package tracking

import "time"

// LocationPoint is one persisted GPS sample for a trip session. Points are
// append-only; RecordedAt is the sample timestamp history is ordered by.
type LocationPoint struct {
	ID            string    `json:"id"`
	TripSessionID string    `json:"trip_session_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Accuracy      *float64  `json:"accuracy,omitempty"`
	Speed         *float64  `json:"speed,omitempty"`
	Heading       *float64  `json:"heading,omitempty"`
	RecordedAt    time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"created_at"`
}

// Sample is an inbound location payload. Coordinates are pointers so a
// missing field can be told apart from a zero value.
type Sample struct {
	TripSessionID string   `json:"trip_session_id"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Accuracy      *float64 `json:"accuracy,omitempty"`
	Speed         *float64 `json:"speed,omitempty"`
	Heading       *float64 `json:"heading,omitempty"`
}
