package payments

import (
	paysvc "sol-backend/internal/application/payments"
	"sol-backend/internal/middleware"
	"sol-backend/internal/pkg/response"
	"sol-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *paysvc.Service
}

type submitBody struct {
	ProofReference string `json:"proof_reference" validate:"required,max=512"`
}

type validateBody struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type rejectBody struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// List GET /api/v1/sols/:sol_id/payments?round=
func (h *Handlers) List(c *fiber.Ctx) error {
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	round := c.QueryInt("round", 0)
	if round < 0 {
		return response.Error(c, "Invalid round", 400, nil)
	}
	list, err := h.Service.List(c.UserContext(), solID, round)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payments fetched successfully", list, fiber.Map{"count": len(list)})
}

// Submit POST /api/v1/payments/:payment_id/submit
func (h *Handlers) Submit(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	paymentID, err := middleware.ParamUUID(c, "payment_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body submitBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if errs := validation.Struct(body); errs != nil {
		return response.Error(c, "Validation failed", 400, errs)
	}
	p, err := h.Service.Submit(c.UserContext(), actor, paymentID, body.ProofReference)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment proof submitted", p, nil)
}

// Validate POST /api/v1/payments/:payment_id/validate
func (h *Handlers) Validate(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	paymentID, err := middleware.ParamUUID(c, "payment_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body validateBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", 400, nil)
		}
	}
	if errs := validation.Struct(body); errs != nil {
		return response.Error(c, "Validation failed", 400, errs)
	}
	p, err := h.Service.Validate(c.UserContext(), actor, paymentID, body.Notes)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment validated", p, nil)
}

// Reject POST /api/v1/payments/:payment_id/reject
func (h *Handlers) Reject(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	paymentID, err := middleware.ParamUUID(c, "payment_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body rejectBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if errs := validation.Struct(body); errs != nil {
		return response.Error(c, "Validation failed", 400, errs)
	}
	p, err := h.Service.Reject(c.UserContext(), actor, paymentID, body.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment rejected", p, nil)
}

// Checkout POST /api/v1/payments/:payment_id/checkout
// Only creates the Stripe PaymentIntent; the webhook settles the payment.
func (h *Handlers) Checkout(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	paymentID, err := middleware.ParamUUID(c, "payment_id")
	if err != nil {
		return response.FromError(c, err)
	}
	pi, err := h.Service.Checkout(c.UserContext(), actor, paymentID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment intent created", fiber.Map{
		"payment_intent_id": pi.ID,
		"client_secret":     pi.ClientSecret,
	}, nil)
}
