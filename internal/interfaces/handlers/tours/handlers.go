package tours

import (
	toursvc "sol-backend/internal/application/tours"
	"sol-backend/internal/middleware"
	"sol-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *toursvc.Service
}

// Status GET /api/v1/sols/:sol_id/tour
func (h *Handlers) Status(c *fiber.Ctx) error {
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	st, err := h.Service.Status(c.UserContext(), solID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Tour status fetched successfully", st, nil)
}

// History GET /api/v1/sols/:sol_id/tour/history
func (h *Handlers) History(c *fiber.Ctx) error {
	solID, err := middleware.ParamUUID(c, "sol_id")
	if err != nil {
		return response.FromError(c, err)
	}
	rounds, err := h.Service.History(c.UserContext(), solID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Tour history fetched successfully", rounds, fiber.Map{"count": len(rounds)})
}
