package webapi

import (
	"github.com/amirasaad/ledgersync/pkg/dto"
	"github.com/amirasaad/ledgersync/pkg/service"
	"github.com/gofiber/fiber/v2"
)

// LedgerRoutes registers endpoints for user-authored ledger rows.
//
//   - POST   /transactions              : Book an expense or income row.
//   - GET    /transactions              : List the user's live rows.
//   - DELETE /transactions/:id          : Tombstone a row.
//   - GET    /accounts/:id/transactions : List an account's live rows.
//   - POST   /transfers                 : Move money between two accounts.
//   - POST   /adjustments               : Book a balance correction.
func LedgerRoutes(app *fiber.App, svc *service.LedgerService) {
	app.Post("/transactions", CreateTransaction(svc))
	app.Get("/transactions", ListTransactions(svc))
	app.Delete("/transactions/:id", DeleteTransaction(svc))
	app.Get("/accounts/:id/transactions", ListAccountTransactions(svc))
	app.Post("/transfers", CreateTransfer(svc))
	app.Post("/adjustments", CreateAdjustment(svc))
}

// CreateTransaction returns the handler booking a plain ledger row.
func CreateTransaction(svc *service.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input dto.TransactionCreate
		if err := c.BodyParser(&input); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
		read, err := svc.CreateTransaction(c.Context(), input)
		if err != nil {
			return serviceError(c, "Failed to create transaction", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Transaction created", read)
	}
}

// ListTransactions returns the handler listing the user's live rows.
func ListTransactions(svc *service.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := svc.ListTransactions(c.Context())
		if err != nil {
			return serviceError(c, "Failed to list transactions", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Transactions", rows)
	}
}

// DeleteTransaction returns the handler tombstoning a user-authored row.
func DeleteTransaction(svc *service.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.DeleteTransaction(c.Context(), c.Params("id")); err != nil {
			return serviceError(c, "Failed to delete transaction", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Transaction deleted", nil)
	}
}

// ListAccountTransactions returns the handler listing one account's rows.
func ListAccountTransactions(svc *service.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := svc.ListByAccount(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, "Failed to list transactions", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Transactions", rows)
	}
}

// CreateTransfer returns the handler booking a paired account transfer.
func CreateTransfer(svc *service.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input dto.TransferCreate
		if err := c.BodyParser(&input); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
		rows, err := svc.CreateTransfer(c.Context(), input)
		if err != nil {
			return serviceError(c, "Failed to create transfer", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Transfer created", rows)
	}
}

// CreateAdjustment returns the handler booking a balance correction.
func CreateAdjustment(svc *service.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input dto.AdjustmentCreate
		if err := c.BodyParser(&input); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
		read, err := svc.CreateAdjustment(c.Context(), input)
		if err != nil {
			return serviceError(c, "Failed to create adjustment", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Adjustment created", read)
	}
}
