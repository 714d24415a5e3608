package payments

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/shopspring/decimal"

	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/respond"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type transferRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
}

// Transfer moves funds from the authenticated user to :receiverId.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, "Invalid request body")
	}
	uid, _ := c.Locals("user_id").(string)

	txn, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:    uid,
		ReceiverID:  utils.CopyString(c.Params("receiverId")),
		Amount:      req.Amount,
		Description: req.Description,
		Type:        TypeFromString(req.Type),
	})
	if err != nil {
		return WriteError(c, h.logger, err)
	}
	return respond.OK(c, http.StatusCreated, "Transfer successful", txn)
}

// WriteError renders a transfer engine error as an envelope. Insufficient
// funds keeps the legacy 200 status; clients must read the code.
func WriteError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, ErrInvalidReceiver):
		return respond.Fail(c, http.StatusBadRequest, respond.CodeInvalidReceiver, "Invalid receiver")
	case errors.Is(err, ErrInvalidAmount):
		return respond.Fail(c, http.StatusBadRequest, respond.CodeInvalidAmount, "Amount must be positive")
	case errors.Is(err, ErrAmountTooSmall):
		return respond.Fail(c, http.StatusBadRequest, respond.CodeAmountTooSmall, ErrAmountTooSmall.Error())
	case errors.Is(err, ErrSenderNotFound):
		return respond.Fail(c, http.StatusNotFound, respond.CodeSenderNotFound, "Sender account not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return respond.Fail(c, http.StatusOK, respond.CodeInsufficientFunds, "Insufficient balance")
	case errors.Is(err, ErrLedgerWriteFailed):
		logger.ErrorContext(c.UserContext(), "ledger write failed", "path", c.Path(), "error", err)
		return respond.Fail(c, http.StatusInternalServerError, respond.CodeLedgerWriteFailed, respond.GenericFailure)
	default:
		return err
	}
}
