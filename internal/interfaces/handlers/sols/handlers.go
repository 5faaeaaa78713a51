package sols

import (
	"time"

	solsvc "sol-backend/internal/application/sols"
	"sol-backend/internal/middleware"
	"sol-backend/internal/pkg/response"
	"sol-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *solsvc.Service
}

type createSolBody struct {
	Name               string          `json:"name" validate:"required,max=120"`
	ContributionAmount decimal.Decimal `json:"contribution_amount" validate:"gt=0"`
	Currency           string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Periodicity        string          `json:"periodicity" validate:"required,oneof=weekly biweekly monthly"`
	MaxParticipants    int             `json:"max_participants" validate:"min=2,max=100"`
}

type activateBody struct {
	StartDate *time.Time `json:"start_date"`
}

type advanceBody struct {
	CompletedRound int `json:"completed_round" validate:"min=1"`
}

// CreateSol POST /api/v1/sols
func (h *Handlers) CreateSol(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body createSolBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if errs := validation.Struct(body); errs != nil {
		return response.Error(c, "Validation failed", 400, errs)
	}
	sol, err := h.Service.Create(c.UserContext(), actor, solsvc.CreateSolInput{
		Name:               body.Name,
		ContributionAmount: body.ContributionAmount,
		Currency:           body.Currency,
		Periodicity:        body.Periodicity,
		MaxParticipants:    body.MaxParticipants,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Sol created successfully", sol, nil)
}

// GetSol GET /api/v1/sols/:sol_id
func (h *Handlers) GetSol(c *fiber.Ctx) error {
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	sol, err := h.Service.Get(c.UserContext(), solID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Sol fetched successfully", sol, nil)
}

// ListParticipants GET /api/v1/sols/:sol_id/participants
func (h *Handlers) ListParticipants(c *fiber.Ctx) error {
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	ps, err := h.Service.ListParticipants(c.UserContext(), solID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Participants fetched successfully", ps, fiber.Map{"count": len(ps)})
}

// Join POST /api/v1/sols/:sol_id/join
func (h *Handlers) Join(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Join(c.UserContext(), actor, solID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Joined sol successfully", p, nil)
}

// RemoveParticipant DELETE /api/v1/sols/:sol_id/participants/:participant_id
func (h *Handlers) RemoveParticipant(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	participantID, err := middleware.ParamUUID(c, "participant_id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.RemoveParticipant(c.UserContext(), actor, solID, participantID); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Participant removed successfully", fiber.Map{"participant_id": participantID}, nil)
}

// Activate POST /api/v1/sols/:sol_id/activate
func (h *Handlers) Activate(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body activateBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", 400, nil)
		}
	}
	var start time.Time
	if body.StartDate != nil {
		start = *body.StartDate
	}
	sol, err := h.Service.Activate(c.UserContext(), actor, solID, start)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Sol activated successfully", sol, nil)
}

// Advance POST /api/v1/sols/:sol_id/advance
func (h *Handlers) Advance(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body advanceBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if errs := validation.Struct(body); errs != nil {
		return response.Error(c, "Validation failed", 400, errs)
	}
	sol, advanced, err := h.Service.AdvanceRound(c.UserContext(), actor, solID, body.CompletedRound)
	if err != nil {
		return response.FromError(c, err)
	}
	msg := "Round advanced successfully"
	if !advanced {
		msg = "Round already advanced"
	}
	return response.Success(c, msg, fiber.Map{"sol": sol, "advanced": advanced}, nil)
}

// Cancel POST /api/v1/sols/:sol_id/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	actor, ok := middleware.Actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Cancel(c.UserContext(), actor, solID); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Sol cancelled successfully", fiber.Map{"sol_id": solID}, nil)
}
