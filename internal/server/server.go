package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vouchpay/vouchpay/internal/config"
	"github.com/vouchpay/vouchpay/internal/fault"
	"github.com/vouchpay/vouchpay/internal/order"
	"github.com/vouchpay/vouchpay/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	wiring routes.Wiring
}

// New instantiates the HTTP server and delegates route wiring to
// routes.Setup. Business errors from the service layer are mapped to HTTP
// statuses here, so handlers can return them untranslated.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler,
	})

	wiring, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, wiring: wiring}, nil
}

// Sweeper builds the verification-deadline sweeper over the same order
// service the HTTP surface uses, so in-process locks are shared.
func (s *Server) Sweeper(logger *slog.Logger) *order.Sweeper {
	return order.NewSweeper(s.wiring.Orders, s.wiring.OrderRepo, s.cfg.SweepInterval, s.cfg.StoreTimeout, logger)
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiber.Map{"code": httpCode(fiberErr.Code), "message": fiberErr.Message},
		})
	}

	status := fault.HTTPStatus(err)
	code := fault.Code(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"code": code, "message": message},
	})
}

func httpCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "error"
	}
}
