package accounts

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/respond"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the authenticated user's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	balance, err := h.service.Balance(c.UserContext(), uid)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return respond.Fail(c, http.StatusNotFound, respond.CodeNotFound, "Account not found")
	}
	if err != nil {
		return err
	}
	return respond.OK(c, http.StatusOK, "Balance retrieved successfully", balance)
}
