package stream

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dravynn/RideNetAi/internal/auth"
	"github.com/dravynn/RideNetAi/internal/tracking"
	"github.com/dravynn/RideNetAi/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"
)

// TokenVerifier is the connection gatekeeper. Satisfied by *auth.Service.
type TokenVerifier interface {
	ValidateAccessToken(token string) (auth.Identity, error)
}

// TripDirectory resolves and authorizes trips for joins and writes.
// Satisfied by *trip.Service.
type TripDirectory interface {
	ActiveSession(ctx context.Context, id string) trip.Lookup
	AuthorizeParticipant(ctx context.Context, identity auth.Identity, tripID string) error
}

// Recorder persists location samples and serves ordered history.
// Satisfied by *tracking.Service.
type Recorder interface {
	RecordLocation(ctx context.Context, tripID string, input tracking.Sample) (tracking.LocationPoint, error)
	History(ctx context.Context, tripID string) ([]tracking.LocationPoint, error)
}

func RegisterRoutes(r fiber.Router, hub *Hub, verifier TokenVerifier, trips TripDirectory, recorder Recorder) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		// The bearer credential travels as a query parameter, outside the
		// handshake headers. No room operation is reachable before it
		// verifies.
		identity, err := verifier.ValidateAccessToken(c.Query("token"))
		if err != nil {
			if payload, encErr := encodeEvent(EventError, ErrorPayload{Code: CodeAuthFailed, Message: err.Error()}); encErr == nil {
				_ = c.WriteMessage(websocket.TextMessage, payload)
			}
			_ = c.Close()
			return
		}

		client := hub.Register(identity)
		log.Debug().Str("user_id", identity.ID).Str("conn_id", client.ID).Msg("client connected")

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			dispatch(hub, trips, recorder, client, msg)
		}

		hub.Unregister(client)
		log.Debug().Str("conn_id", client.ID).Msg("client disconnected")
		<-done
	}))
}

func dispatch(hub *Hub, trips TripDirectory, recorder Recorder, client *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		hub.SendEvent(client, EventError, ErrorPayload{Code: CodeBadRequest, Message: "malformed event"})
		return
	}

	switch env.Event {
	case EventJoinTrip:
		var tripID string
		if err := json.Unmarshal(env.Data, &tripID); err != nil || tripID == "" {
			hub.SendEvent(client, EventError, ErrorPayload{Code: CodeBadRequest, Message: "trip id required"})
			return
		}
		handleJoin(hub, trips, recorder, client, tripID)

	case EventLeaveTrip:
		var tripID string
		if err := json.Unmarshal(env.Data, &tripID); err != nil || tripID == "" {
			hub.SendEvent(client, EventError, ErrorPayload{Code: CodeBadRequest, Message: "trip id required"})
			return
		}
		hub.LeaveRoom(client, tripID)
		hub.SendEvent(client, EventLeftTrip, fiber.Map{"tripId": tripID})

	case EventLocationUpdate:
		var sample tracking.Sample
		if err := json.Unmarshal(env.Data, &sample); err != nil || sample.TripSessionID == "" {
			hub.SendEvent(client, EventError, ErrorPayload{Code: CodeBadRequest, Message: "trip_session_id is required"})
			return
		}
		handleLocationUpdate(hub, trips, recorder, client, sample)

	default:
		hub.SendEvent(client, EventError, ErrorPayload{Code: CodeBadRequest, Message: "unknown event"})
	}
}

// handleJoin queues the join confirmation and the full ordered history on
// the client's send queue before adding it to the room, so no live sample
// can reach the joiner ahead of its backlog.
func handleJoin(hub *Hub, trips TripDirectory, recorder Recorder, client *Client, tripID string) {
	ctx := context.Background()

	lookup := trips.ActiveSession(ctx, tripID)
	switch lookup.Outcome {
	case trip.LookupNotFound, trip.LookupWrongStatus:
		hub.SendEvent(client, EventError, ErrorPayload{Code: CodeTripNotActive, Message: "trip not found or not active"})
		return
	case trip.LookupStorageFault:
		log.Error().Err(lookup.Err).Str("trip_id", tripID).Msg("trip lookup failed")
		hub.SendEvent(client, EventError, ErrorPayload{Code: CodeStorageFault, Message: "failed to join trip"})
		return
	}

	if err := trips.AuthorizeParticipant(ctx, client.Identity, tripID); err != nil {
		if errors.Is(err, trip.ErrNotParticipant) {
			hub.SendEvent(client, EventError, ErrorPayload{Code: CodeNotAuthorized, Message: "not authorized for this trip"})
			return
		}
		log.Error().Err(err).Str("trip_id", tripID).Msg("authorization check failed")
		hub.SendEvent(client, EventError, ErrorPayload{Code: CodeStorageFault, Message: "failed to join trip"})
		return
	}

	history, err := recorder.History(ctx, tripID)
	if err != nil {
		log.Error().Err(err).Str("trip_id", tripID).Msg("history fetch failed")
		hub.SendEvent(client, EventError, ErrorPayload{Code: CodeStorageFault, Message: "failed to join trip"})
		return
	}

	hub.SendEvent(client, EventJoinedTrip, fiber.Map{"tripId": tripID})
	hub.SendEvent(client, EventLocationHistory, history)
	hub.JoinRoom(client, tripID)
}

// handleLocationUpdate records the sample; the successful broadcast happens
// inside the recorder through the hub, against room membership read at that
// moment. Failures go back to the submitter only.
func handleLocationUpdate(hub *Hub, trips TripDirectory, recorder Recorder, client *Client, sample tracking.Sample) {
	ctx := context.Background()

	if err := trips.AuthorizeParticipant(ctx, client.Identity, sample.TripSessionID); err != nil {
		if errors.Is(err, trip.ErrNotParticipant) {
			hub.SendEvent(client, EventError, ErrorPayload{Code: CodeNotAuthorized, Message: "not authorized for this trip"})
			return
		}
		log.Error().Err(err).Str("trip_id", sample.TripSessionID).Msg("authorization check failed")
		hub.SendEvent(client, EventError, ErrorPayload{Code: CodeStorageFault, Message: "failed to record location"})
		return
	}

	if _, err := recorder.RecordLocation(ctx, sample.TripSessionID, sample); err != nil {
		hub.SendEvent(client, EventError, errorPayloadFor(err))
	}
}

func errorPayloadFor(err error) ErrorPayload {
	switch {
	case errors.Is(err, tracking.ErrTripNotFound):
		return ErrorPayload{Code: CodeTripNotFound, Message: err.Error()}
	case errors.Is(err, tracking.ErrTripNotInProgress):
		return ErrorPayload{Code: CodeTripNotInProgress, Message: err.Error()}
	case errors.Is(err, tracking.ErrInvalidSample):
		return ErrorPayload{Code: CodeInvalidSample, Message: err.Error()}
	default:
		return ErrorPayload{Code: CodeStorageFault, Message: "failed to record location"}
	}
}
