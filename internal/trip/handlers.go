package trip

import (
	"context"
	"errors"

	"github.com/dravynn/RideNetAi/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	adminOnly := auth.RequireRole(auth.RoleAdmin)
	driverOrAdmin := auth.RequireRole(auth.RoleDriver, auth.RoleAdmin)

	r.Post("/", authMiddleware, adminOnly, func(c *fiber.Ctx) error {
		var req Session
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.GroupID == "" || req.DriverID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "group_id and driver_id required")
		}
		if req.TripType != TypeMorning && req.TripType != TypeAfternoon {
			return fiber.NewError(fiber.StatusBadRequest, "trip_type must be MORNING or AFTERNOON")
		}
		sess, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		sess, err := svc.Session(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "trip session not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(sess)
	})

	r.Post("/:id/start", authMiddleware, driverOrAdmin, transitionHandler(svc.Start))
	r.Post("/:id/complete", authMiddleware, driverOrAdmin, transitionHandler(svc.Complete))
	r.Post("/:id/cancel", authMiddleware, driverOrAdmin, transitionHandler(svc.Cancel))
}

func transitionHandler(fn func(ctx context.Context, id string) (Session, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := fn(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "trip session not found")
		}
		if errors.Is(err, ErrInvalidTransition) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(sess)
	}
}
