package webapi

import (
	"github.com/amirasaad/ledgersync/pkg/dto"
	"github.com/amirasaad/ledgersync/pkg/service"
	"github.com/gofiber/fiber/v2"
)

// CreateTripRequest creates a trip.
type CreateTripRequest struct {
	Name  string `json:"name" validate:"required"`
	Group bool   `json:"group"`
}

// AddParticipantRequest adds a seat to a trip.
type AddParticipantRequest struct {
	Name         string  `json:"name" validate:"required"`
	LinkedUserID *string `json:"linkedUserId"`
}

// TripRoutes registers endpoints for trips, shared expenses, settlements
// and the balance queries built on them.
//
//   - POST   /trips                    : Create a trip.
//   - POST   /trips/:id/participants   : Add a seat.
//   - POST   /trips/:id/expenses       : Create a shared expense.
//   - PATCH  /expenses/:id             : Edit a shared expense.
//   - DELETE /expenses/:id             : Tombstone a shared expense.
//   - POST   /trips/:id/settlements    : Record a settle-up payment.
//   - DELETE /trips/:id/settlements/:sid
//   - GET    /trips/:id/balances       : Per-participant positions.
//   - GET    /trips/:id/settle-plan    : Minimal settling transfers.
//   - GET    /trips/:id/summary        : Current user's two figures.
func TripRoutes(app *fiber.App, svc *service.TripService) {
	app.Post("/trips", CreateTrip(svc))
	app.Post("/trips/:id/participants", AddParticipant(svc))
	app.Post("/trips/:id/expenses", CreateExpense(svc))
	app.Patch("/expenses/:id", UpdateExpense(svc))
	app.Delete("/expenses/:id", DeleteExpense(svc))
	app.Post("/trips/:id/settlements", RecordSettlement(svc))
	app.Delete("/trips/:id/settlements/:sid", DeleteSettlement(svc))
	app.Get("/trips/:id/balances", GetBalances(svc))
	app.Get("/trips/:id/settle-plan", GetSettlePlan(svc))
	app.Get("/trips/:id/summary", GetSummary(svc))
}

// CreateTrip returns the handler creating a trip.
func CreateTrip(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[CreateTripRequest](c)
		if input == nil {
			return err
		}
		trip, err := svc.CreateTrip(c.Context(), input.Name, input.Group)
		if err != nil {
			return serviceError(c, "Failed to create trip", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Trip created", trip)
	}
}

// AddParticipant returns the handler adding a seat to a trip.
func AddParticipant(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[AddParticipantRequest](c)
		if input == nil {
			return err
		}
		p, err := svc.AddParticipant(c.Context(), c.Params("id"), input.Name, input.LinkedUserID)
		if err != nil {
			return serviceError(c, "Failed to add participant", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Participant added", p)
	}
}

// CreateExpense returns the handler creating a shared expense. The trip id
// comes from the path, not the body.
func CreateExpense(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input dto.ExpenseCreate
		if err := c.BodyParser(&input); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
		input.TripID = c.Params("id")
		expense, err := svc.CreateExpense(c.Context(), input)
		if err != nil {
			return serviceError(c, "Failed to create expense", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Expense created", expense)
	}
}

// UpdateExpense returns the handler editing a shared expense.
func UpdateExpense(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input dto.ExpenseUpdate
		if err := c.BodyParser(&input); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
		expense, err := svc.UpdateExpense(c.Context(), c.Params("id"), input)
		if err != nil {
			return serviceError(c, "Failed to update expense", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Expense updated", expense)
	}
}

// DeleteExpense returns the handler tombstoning a shared expense.
func DeleteExpense(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.DeleteExpense(c.Context(), c.Params("id")); err != nil {
			return serviceError(c, "Failed to delete expense", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Expense deleted", nil)
	}
}

// RecordSettlement returns the handler recording a settle-up payment.
func RecordSettlement(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input dto.SettlementCreate
		if err := c.BodyParser(&input); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
		input.TripID = c.Params("id")
		settlement, err := svc.RecordSettlement(c.Context(), input)
		if err != nil {
			return serviceError(c, "Failed to record settlement", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Settlement recorded", settlement)
	}
}

// DeleteSettlement returns the handler tombstoning a settlement.
func DeleteSettlement(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := svc.DeleteSettlement(c.Context(), c.Params("id"), c.Params("sid"))
		if err != nil {
			return serviceError(c, "Failed to delete settlement", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Settlement deleted", nil)
	}
}

// GetBalances returns the handler for per-participant positions.
func GetBalances(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		balances, err := svc.Balances(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, "Failed to compute balances", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Balances", balances)
	}
}

// GetSettlePlan returns the handler for the minimal settling transfer plan.
func GetSettlePlan(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		plan, err := svc.SettlePlan(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, "Failed to compute settle plan", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Settle plan", plan)
	}
}

// GetSummary returns the handler for the current user's trip summary.
func GetSummary(svc *service.TripService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := svc.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, "Failed to compute summary", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Summary", summary)
	}
}
