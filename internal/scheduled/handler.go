package scheduled

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/toybank/toybank/internal/payments"
	"github.com/toybank/toybank/internal/respond"
)

// Handler exposes the scheduling endpoint.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a scheduling handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type scheduleRequest struct {
	ReceiverID  string          `json:"receiverId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	SendAt      time.Time       `json:"sendAt"`
}

// Create schedules a payment from the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, "Invalid request body")
	}
	uid, _ := c.Locals("user_id").(string)

	st, err := h.service.Schedule(c.UserContext(), Input{
		SenderID:    uid,
		ReceiverID:  req.ReceiverID,
		Amount:      req.Amount,
		Description: req.Description,
		Type:        payments.TypeFromString(req.Type),
		SendAt:      req.SendAt,
	})
	if errors.Is(err, ErrSendAtNotInFuture) {
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, "sendAt must be in the future")
	}
	if err != nil {
		return payments.WriteError(c, h.logger, err)
	}
	return respond.OK(c, http.StatusCreated, "Payment scheduled successfully", st)
}
