package server

import (
	"github.com/dravynn/RideNetAi/internal/auth"
	"github.com/dravynn/RideNetAi/internal/config"
	"github.com/dravynn/RideNetAi/internal/stream"
	"github.com/dravynn/RideNetAi/internal/tracking"
	"github.com/dravynn/RideNetAi/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowCredentials: true,
	}))

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB)
	tripSvc := trip.NewService(s.DB)
	trackingSvc := tracking.NewService(s.DB, s.Stream)

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	trip.RegisterRoutes(s.App.Group("/trips"), tripSvc, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), trackingSvc, tripSvc, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, authSvc, tripSvc, trackingSvc)
}
