package trip

import (
	"context"
	"errors"

	"github.com/dravynn/RideNetAi/internal/auth"
	"github.com/dravynn/RideNetAi/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound          = errors.New("trip session not found")
	ErrInvalidTransition = errors.New("invalid trip status transition")
	ErrNotParticipant    = errors.New("not a participant of this trip")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

const sessionColumns = `
	SELECT id, group_id, driver_id, trip_type, scheduled_date, scheduled_time,
	       COALESCE(started_at, 'epoch'::timestamptz), COALESCE(completed_at, 'epoch'::timestamptz),
	       status, created_at, updated_at
	FROM trip_sessions`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.GroupID, &s.DriverID, &s.TripType, &s.ScheduledDate, &s.ScheduledTime,
		&s.StartedAt, &s.CompletedAt, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Session resolves a trip by id regardless of status.
func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, sessionColumns+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ActiveSession resolves a trip for room joins. Only SCHEDULED and
// IN_PROGRESS trips count as joinable; every other outcome is tagged
// rather than collapsed into a single absence signal.
func (s *Service) ActiveSession(ctx context.Context, id string) Lookup {
	sess, err := scanSession(s.db.QueryRow(ctx, sessionColumns+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lookup{Outcome: LookupNotFound}
	}
	if err != nil {
		return Lookup{Outcome: LookupStorageFault, Err: err}
	}
	if sess.Status != StatusScheduled && sess.Status != StatusInProgress {
		return Lookup{Outcome: LookupWrongStatus, Status: sess.Status}
	}
	return Lookup{Outcome: LookupFound, Session: sess}
}

func (s *Service) Create(ctx context.Context, input Session) (Session, error) {
	input.ID = uuid.NewString()
	input.Status = StatusScheduled
	row := s.db.QueryRow(ctx, `
		INSERT INTO trip_sessions (id, group_id, driver_id, trip_type, scheduled_date, scheduled_time, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at
	`, input.ID, input.GroupID, input.DriverID, input.TripType, input.ScheduledDate, input.ScheduledTime, input.Status)
	if err := row.Scan(&input.CreatedAt, &input.UpdatedAt); err != nil {
		return Session{}, err
	}
	return input, nil
}

// Start moves a SCHEDULED trip to IN_PROGRESS and stamps started_at.
func (s *Service) Start(ctx context.Context, id string) (Session, error) {
	return s.transition(ctx, id, StatusScheduled, StatusInProgress, `
		UPDATE trip_sessions
		SET status=$3, started_at=now(), updated_at=now()
		WHERE id=$1 AND status=$2`)
}

// Complete moves an IN_PROGRESS trip to COMPLETED and stamps completed_at.
func (s *Service) Complete(ctx context.Context, id string) (Session, error) {
	return s.transition(ctx, id, StatusInProgress, StatusCompleted, `
		UPDATE trip_sessions
		SET status=$3, completed_at=now(), updated_at=now()
		WHERE id=$1 AND status=$2`)
}

// Cancel aborts a trip that has not finished yet.
func (s *Service) Cancel(ctx context.Context, id string) (Session, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Status != StatusScheduled && sess.Status != StatusInProgress {
		return Session{}, ErrInvalidTransition
	}
	return s.transition(ctx, id, sess.Status, StatusCancelled, `
		UPDATE trip_sessions
		SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`)
}

func (s *Service) transition(ctx context.Context, id, from, to, query string) (Session, error) {
	tag, err := s.db.Exec(ctx, query, id, from, to)
	if err != nil {
		return Session{}, err
	}
	if tag.RowsAffected() == 0 {
		// The guarded update missed: either the trip is gone or it sits
		// in a status the transition does not accept.
		if _, err := s.Session(ctx, id); err != nil {
			return Session{}, err
		}
		return Session{}, ErrInvalidTransition
	}
	return s.Session(ctx, id)
}

// AuthorizeParticipant reports whether the identity may watch or feed the
// trip's live stream: the assigned driver, a parent with an enrolled student
// in the trip's group, or an admin.
func (s *Service) AuthorizeParticipant(ctx context.Context, identity auth.Identity, tripID string) error {
	if identity.Role == auth.RoleAdmin {
		return nil
	}

	var allowed bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trip_sessions ts
			JOIN driver_profiles dp ON dp.id = ts.driver_id
			WHERE ts.id = $1 AND dp.user_id = $2
		) OR EXISTS (
			SELECT 1 FROM trip_sessions ts
			JOIN group_students gs ON gs.group_id = ts.group_id
			JOIN students st ON st.id = gs.student_id
			JOIN parent_profiles pp ON pp.id = st.parent_id
			WHERE ts.id = $1 AND pp.user_id = $2
		)
	`, tripID, identity.ID).Scan(&allowed)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrNotParticipant
	}
	return nil
}
