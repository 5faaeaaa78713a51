package order

import (
	ordersvc "sol-backend/internal/application/order"
	"sol-backend/internal/middleware"
	"sol-backend/internal/pkg/response"
	"sol-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *ordersvc.Service
}

type setOrderBody struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=1,dive,required"`
}

type previewBody struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=1"`
	From           int         `json:"from" validate:"min=0"`
	To             int         `json:"to" validate:"min=0"`
}

// SetOrder PUT /api/v1/sols/:sol_id/order
func (h *Handlers) SetOrder(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body setOrderBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if errs := validation.Struct(body); errs != nil {
		return response.Error(c, "Validation failed", 400, errs)
	}
	ps, err := h.Service.SetOrder(c.UserContext(), actor, solID, body.ParticipantIDs)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order updated successfully", ps, nil)
}

// Randomize POST /api/v1/sols/:sol_id/order/randomize
func (h *Handlers) Randomize(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	ps, seed, err := h.Service.Randomize(c.UserContext(), actor, solID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order randomized successfully", fiber.Map{"participants": ps, "seed": seed}, nil)
}

// Preview POST /api/v1/sols/:sol_id/order/preview
// Applies one drag-and-drop move to the submitted list without touching the Sol.
func (h *Handlers) Preview(c *fiber.Ctx) error {
	var body previewBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if errs := validation.Struct(body); errs != nil {
		return response.Error(c, "Validation failed", 400, errs)
	}
	ids, err := ordersvc.Move(body.ParticipantIDs, body.From, body.To)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order preview computed", fiber.Map{"participant_ids": ids}, nil)
}

// Verify GET /api/v1/sols/:sol_id/order/verify
func (h *Handlers) Verify(c *fiber.Ctx) error {
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	v, err := h.Service.Verify(c.UserContext(), solID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order verified", v, nil)
}
