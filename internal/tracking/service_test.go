package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

type capturedEvent struct {
	tripID string
	event  string
	data   any
}

type fakeBroadcaster struct {
	events []capturedEvent
}

func (f *fakeBroadcaster) BroadcastEvent(tripID, event string, data any) {
	f.events = append(f.events, capturedEvent{tripID: tripID, event: event, data: data})
}

func floatPtr(v float64) *float64 { return &v }

func TestRecordLocationBroadcasts(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT status FROM trip_sessions`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("IN_PROGRESS"))
	mock.ExpectQuery(`INSERT INTO location_points`).
		WithArgs(pgxmock.AnyArg(), "trip-1", 40.0, -75.0, floatPtr(5.0), (*float64)(nil), (*float64)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"recorded_at", "created_at"}).AddRow(time.Now(), time.Now()))

	hub := &fakeBroadcaster{}
	svc := NewService(mock, hub)

	point, err := svc.RecordLocation(context.Background(), "trip-1", Sample{
		TripSessionID: "trip-1",
		Latitude:      floatPtr(40.0),
		Longitude:     floatPtr(-75.0),
		Accuracy:      floatPtr(5.0),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if point.ID == "" || point.Latitude != 40.0 || point.Longitude != -75.0 {
		t.Fatalf("unexpected point: %+v", point)
	}
	if point.Accuracy == nil || *point.Accuracy != 5.0 {
		t.Fatalf("expected accuracy preserved")
	}
	if point.Speed != nil || point.Heading != nil {
		t.Fatalf("expected absent optionals to stay absent")
	}

	if len(hub.events) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(hub.events))
	}
	if hub.events[0].tripID != "trip-1" || hub.events[0].event != "location-update" {
		t.Fatalf("unexpected broadcast: %+v", hub.events[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordLocationTripNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT status FROM trip_sessions`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	hub := &fakeBroadcaster{}
	svc := NewService(mock, hub)

	_, err = svc.RecordLocation(context.Background(), "missing", Sample{Latitude: floatPtr(40.0), Longitude: floatPtr(-75.0)})
	if !errors.Is(err, ErrTripNotFound) {
		t.Fatalf("expected ErrTripNotFound, got %v", err)
	}
	if len(hub.events) != 0 {
		t.Fatalf("expected no broadcast")
	}
}

func TestRecordLocationTripNotInProgress(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	for _, status := range []string{"SCHEDULED", "COMPLETED", "CANCELLED"} {
		mock.ExpectQuery(`SELECT status FROM trip_sessions`).
			WithArgs("trip-1").
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(status))
	}

	hub := &fakeBroadcaster{}
	svc := NewService(mock, hub)

	for i := 0; i < 3; i++ {
		_, err = svc.RecordLocation(context.Background(), "trip-1", Sample{Latitude: floatPtr(40.0), Longitude: floatPtr(-75.0)})
		if !errors.Is(err, ErrTripNotInProgress) {
			t.Fatalf("expected ErrTripNotInProgress, got %v", err)
		}
	}
	if len(hub.events) != 0 {
		t.Fatalf("expected no broadcast for inactive trip")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordLocationInvalidSample(t *testing.T) {
	hub := &fakeBroadcaster{}
	svc := NewService(nil, hub)

	cases := []Sample{
		{},
		{Latitude: floatPtr(40.0)},
		{Longitude: floatPtr(-75.0)},
		{Latitude: floatPtr(91.0), Longitude: floatPtr(0)},
		{Latitude: floatPtr(0), Longitude: floatPtr(181.0)},
	}
	for _, sample := range cases {
		if _, err := svc.RecordLocation(context.Background(), "trip-1", sample); !errors.Is(err, ErrInvalidSample) {
			t.Fatalf("expected ErrInvalidSample for %+v, got %v", sample, err)
		}
	}
	if len(hub.events) != 0 {
		t.Fatalf("expected no broadcast for invalid samples")
	}
}

func TestRecordLocationInsertFailure(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT status FROM trip_sessions`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("IN_PROGRESS"))
	mock.ExpectQuery(`INSERT INTO location_points`).
		WillReturnError(errors.New("disk full"))

	hub := &fakeBroadcaster{}
	svc := NewService(mock, hub)

	_, err = svc.RecordLocation(context.Background(), "trip-1", Sample{Latitude: floatPtr(40.0), Longitude: floatPtr(-75.0)})
	if err == nil {
		t.Fatalf("expected storage error")
	}
	if len(hub.events) != 0 {
		t.Fatalf("expected no broadcast on failed persist")
	}
}

func TestHistoryOrderedRoundTrip(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	earlier := time.Now().Add(-time.Minute)
	later := time.Now()
	mock.ExpectQuery(`SELECT id, trip_session_id, latitude, longitude, accuracy, speed, heading, recorded_at, created_at`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "trip_session_id", "latitude", "longitude", "accuracy", "speed", "heading", "recorded_at", "created_at"}).
			AddRow("p1", "trip-1", 40.0, -75.0, floatPtr(5.0), floatPtr(12.5), floatPtr(270.0), earlier, earlier).
			AddRow("p2", "trip-1", 40.1, -75.1, (*float64)(nil), (*float64)(nil), (*float64)(nil), later, later))

	svc := NewService(mock, nil)
	points, err := svc.History(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if !points[0].RecordedAt.Before(points[1].RecordedAt) {
		t.Fatalf("expected ascending order")
	}
	first := points[0]
	if first.Latitude != 40.0 || first.Longitude != -75.0 || *first.Accuracy != 5.0 || *first.Speed != 12.5 || *first.Heading != 270.0 {
		t.Fatalf("round trip mismatch: %+v", first)
	}
	if points[1].Accuracy != nil {
		t.Fatalf("expected nil accuracy on second point")
	}
}

func TestHistoryEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, trip_session_id, latitude, longitude`).
		WithArgs("trip-2").
		WillReturnRows(pgxmock.NewRows([]string{"id", "trip_session_id", "latitude", "longitude", "accuracy", "speed", "heading", "recorded_at", "created_at"}))

	svc := NewService(mock, nil)
	points, err := svc.History(context.Background(), "trip-2")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if points == nil || len(points) != 0 {
		t.Fatalf("expected empty non-nil slice")
	}
}
