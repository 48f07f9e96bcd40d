package tracking

import (
	"context"
	"errors"

	"github.com/dravynn/RideNetAi/internal/auth"
	"github.com/dravynn/RideNetAi/internal/trip"

	"github.com/gofiber/fiber/v2"
)

// Authorizer gates trip access for the HTTP surface the same way joins are
// gated on the websocket side. Satisfied by *trip.Service.
type Authorizer interface {
	AuthorizeParticipant(ctx context.Context, identity auth.Identity, tripID string) error
}

func RegisterRoutes(r fiber.Router, svc *Service, authz Authorizer, authMiddleware fiber.Handler) {
	r.Post("/location", authMiddleware, func(c *fiber.Ctx) error {
		var req Sample
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.TripSessionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "trip_session_id is required")
		}

		if err := authz.AuthorizeParticipant(c.Context(), auth.IdentityFromLocals(c), req.TripSessionID); err != nil {
			if errors.Is(err, trip.ErrNotParticipant) {
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		point, err := svc.RecordLocation(c.Context(), req.TripSessionID, req)
		switch {
		case errors.Is(err, ErrTripNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, ErrTripNotInProgress):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidSample):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(point)
	})

	r.Get("/trips/:tripId/locations", authMiddleware, func(c *fiber.Ctx) error {
		tripID := c.Params("tripId")

		if err := authz.AuthorizeParticipant(c.Context(), auth.IdentityFromLocals(c), tripID); err != nil {
			if errors.Is(err, trip.ErrNotParticipant) {
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		points, err := svc.History(c.Context(), tripID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(points)
	})
}
