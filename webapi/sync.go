package webapi

import (
	"github.com/amirasaad/ledgersync/pkg/syncengine"
	"github.com/gofiber/fiber/v2"
)

// SyncRequest triggers one sync pass. Mode defaults to full; AllowPush
// defaults to true.
type SyncRequest struct {
	Mode      string `json:"mode" validate:"omitempty,oneof=push pull full"`
	AllowPush *bool  `json:"allowPush"`
}

// SyncRoutes registers the sync trigger endpoint.
//
//   - POST /sync : Run (or queue) a sync pass.
func SyncRoutes(app *fiber.App, requester SyncRequester) {
	app.Post("/sync", TriggerSync(requester))
}

// TriggerSync returns the handler running one sync pass.
func TriggerSync(requester SyncRequester) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[SyncRequest](c)
		if input == nil {
			return err
		}
		req := syncengine.Request{Mode: syncengine.ModeFull, AllowPush: true}
		if input.Mode != "" {
			req.Mode = syncengine.Mode(input.Mode)
		}
		if input.AllowPush != nil {
			req.AllowPush = *input.AllowPush
		}
		if err := requester.RequestSync(c.Context(), req); err != nil {
			return serviceError(c, "Sync failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Sync completed", nil)
	}
}
