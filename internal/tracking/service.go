package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/dravynn/RideNetAi/internal/db"
	"github.com/dravynn/RideNetAi/internal/trip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrTripNotFound      = errors.New("trip session not found")
	ErrTripNotInProgress = errors.New("trip session is not in progress")
	ErrInvalidSample     = errors.New("latitude and longitude required")
)

// Broadcaster fans a named event out to every live watcher of a trip.
// Satisfied by *stream.Hub; nil disables broadcasting.
type Broadcaster interface {
	BroadcastEvent(tripID, event string, data any)
}

type Service struct {
	db  db.Querier
	hub Broadcaster
}

func NewService(db db.Querier, hub Broadcaster) *Service {
	return &Service{db: db, hub: hub}
}

// RecordLocation validates the sample against current trip state, persists
// it, and broadcasts the stored point to the trip's room. Either the full
// point is stored or nothing is.
func (s *Service) RecordLocation(ctx context.Context, tripID string, input Sample) (LocationPoint, error) {
	if err := validateSample(input); err != nil {
		return LocationPoint{}, err
	}

	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM trip_sessions WHERE id=$1`, tripID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return LocationPoint{}, ErrTripNotFound
	}
	if err != nil {
		return LocationPoint{}, err
	}
	if status != trip.StatusInProgress {
		return LocationPoint{}, ErrTripNotInProgress
	}

	point := LocationPoint{
		ID:            uuid.NewString(),
		TripSessionID: tripID,
		Latitude:      *input.Latitude,
		Longitude:     *input.Longitude,
		Accuracy:      input.Accuracy,
		Speed:         input.Speed,
		Heading:       input.Heading,
		RecordedAt:    time.Now(),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO location_points (id, trip_session_id, latitude, longitude, accuracy, speed, heading, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING recorded_at, created_at
	`, point.ID, point.TripSessionID, point.Latitude, point.Longitude, point.Accuracy, point.Speed, point.Heading, point.RecordedAt)
	if err := row.Scan(&point.RecordedAt, &point.CreatedAt); err != nil {
		return LocationPoint{}, err
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(tripID, "location-update", point)
	}

	return point, nil
}

// History returns every stored point for the trip ordered by sample
// timestamp ascending, regardless of the trip's current status.
func (s *Service) History(ctx context.Context, tripID string) ([]LocationPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_session_id, latitude, longitude, accuracy, speed, heading, recorded_at, created_at
		FROM location_points WHERE trip_session_id=$1
		ORDER BY recorded_at ASC
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []LocationPoint{}
	for rows.Next() {
		var p LocationPoint
		if err := rows.Scan(&p.ID, &p.TripSessionID, &p.Latitude, &p.Longitude, &p.Accuracy, &p.Speed, &p.Heading, &p.RecordedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func validateSample(input Sample) error {
	if input.Latitude == nil || input.Longitude == nil {
		return ErrInvalidSample
	}
	if *input.Latitude < -90 || *input.Latitude > 90 || *input.Longitude < -180 || *input.Longitude > 180 {
		return ErrInvalidSample
	}
	return nil
}
