// Package webapi exposes the trip ledger over HTTP: ledger rows, trips with
// shared expenses and settlements, balance queries, and the sync trigger.
package webapi

import (
	"context"

	"github.com/amirasaad/ledgersync/pkg/service"
	"github.com/amirasaad/ledgersync/pkg/syncengine"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SyncRequester triggers a sync pass; requests arriving while one is in
// flight coalesce into a single follow-up pass.
type SyncRequester interface {
	RequestSync(ctx context.Context, req syncengine.Request) error
}

// Services bundles the dependencies of the HTTP layer.
type Services struct {
	Ledger *service.LedgerService
	Trips  *service.TripService
	Sync   SyncRequester
}

// NewApp initializes the Fiber application with all routes registered.
func NewApp(svcs Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return ErrorResponseJSON(c, status, "Internal Server Error", err.Error())
		},
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ledgersync is running")
	})

	LedgerRoutes(app, svcs.Ledger)
	TripRoutes(app, svcs.Trips)
	SyncRoutes(app, svcs.Sync)

	return app
}
