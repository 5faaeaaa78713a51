package transfers

import (
	xfersvc "sol-backend/internal/application/transfers"
	"sol-backend/internal/middleware"
	"sol-backend/internal/pkg/response"
	"sol-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *xfersvc.Service
}

type markBody struct {
	Reference string `json:"reference" validate:"required,max=255"`
	Notes     string `json:"notes" validate:"max=1000"`
}

type confirmBody struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type disputeBody struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// bind parses and validates the body into out. When ok is false the error response is already written.
func bind(c *fiber.Ctx, out interface{}, optional bool) (ok bool, err error) {
	if optional && len(c.Body()) == 0 {
		return true, nil
	}
	if err := c.BodyParser(out); err != nil {
		return false, response.Error(c, "Invalid request body", 400, nil)
	}
	if errs := validation.Struct(out); errs != nil {
		return false, response.Error(c, "Validation failed", 400, errs)
	}
	return true, nil
}

// ListPending GET /api/v1/transfers/pending
func (h *Handlers) ListPending(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	list, err := h.Service.ListPending(c.UserContext(), actor)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Pending transfers fetched successfully", list, fiber.Map{"count": len(list)})
}

// Get GET /api/v1/transfers/:transfer_id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := middleware.ParamUUID(c, "transfer_id")
	if err != nil {
		return response.FromError(c, err)
	}
	t, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer fetched successfully", t, nil)
}

// MarkTransferred POST /api/v1/transfers/:transfer_id/mark-transferred
func (h *Handlers) MarkTransferred(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := middleware.ParamUUID(c, "transfer_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body markBody
	if ok, err := bind(c, &body, false); !ok {
		return err
	}
	t, err := h.Service.MarkTransferred(c.UserContext(), actor, id, body.Reference, body.Notes)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer marked as sent", t, nil)
}

// MarkPaymentTransferred POST /api/v1/payments/:payment_id/mark-transferred
func (h *Handlers) MarkPaymentTransferred(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := middleware.ParamUUID(c, "payment_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body markBody
	if ok, err := bind(c, &body, false); !ok {
		return err
	}
	t, err := h.Service.MarkPaymentTransferred(c.UserContext(), actor, id, body.Reference, body.Notes)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer marked as sent", t, nil)
}

// Confirm POST /api/v1/transfers/:transfer_id/confirm
func (h *Handlers) Confirm(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := middleware.ParamUUID(c, "transfer_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body confirmBody
	if ok, err := bind(c, &body, true); !ok {
		return err
	}
	t, err := h.Service.ConfirmReceipt(c.UserContext(), actor, id, body.Notes)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer receipt confirmed", t, nil)
}

// Dispute POST /api/v1/transfers/:transfer_id/dispute
func (h *Handlers) Dispute(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := middleware.ParamUUID(c, "transfer_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body disputeBody
	if ok, err := bind(c, &body, false); !ok {
		return err
	}
	t, err := h.Service.Dispute(c.UserContext(), actor, id, body.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer disputed", t, nil)
}

// Reopen POST /api/v1/transfers/:transfer_id/reopen
func (h *Handlers) Reopen(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := middleware.ParamUUID(c, "transfer_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body markBody
	if ok, err := bind(c, &body, false); !ok {
		return err
	}
	t, err := h.Service.Reopen(c.UserContext(), actor, id, body.Reference, body.Notes)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer reopened", t, nil)
}
