package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/respond"
)

// Handler exposes HTTP endpoints for card funding flows.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type cardInRequest struct {
	CardNumber  string          `json:"cardNumber"`
	Expiry      string          `json:"expiry"`
	CVV         string          `json:"cvv"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// CardIn deposits funds from a card into the caller's account.
func (h *Handler) CardIn(c *fiber.Ctx) error {
	var req cardInRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, "Invalid request body")
	}
	uid, _ := c.Locals("user_id").(string)

	result, err := h.service.CardIn(c.UserContext(), CardInInput{
		AccountID:   uid,
		Amount:      req.Amount,
		Description: req.Description,
		CardNumber:  req.CardNumber,
		Expiry:      req.Expiry,
		CVV:         req.CVV,
	})
	switch {
	case errors.Is(err, ErrInvalidCard):
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, err.Error())
	case errors.Is(err, ErrInvalidAmount):
		return respond.Fail(c, http.StatusBadRequest, respond.CodeInvalidAmount, "Amount must be positive")
	case errors.Is(err, ErrDeclined):
		return respond.Fail(c, http.StatusPaymentRequired, respond.CodeBadRequest, "Card declined")
	case errors.Is(err, ledger.ErrAccountNotFound):
		return respond.Fail(c, http.StatusNotFound, respond.CodeNotFound, "Account not found")
	case err != nil:
		return err
	}
	return respond.OK(c, http.StatusCreated, "Deposit successful", result)
}
