package history

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/toybank/toybank/internal/respond"
)

// Handler exposes transaction history endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a history handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func pageFrom(c *fiber.Ctx) Page {
	return NewPage(c.QueryInt("page", 1), c.QueryInt("limit", DefaultPageSize))
}

// All lists the caller's transactions.
func (h *Handler) All(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	page := pageFrom(c)
	txns, err := h.service.ListForAccount(c.UserContext(), uid, page)
	if err != nil {
		return err
	}
	return respond.OK(c, http.StatusOK, "Transactions retrieved successfully", fiber.Map{
		"page":         page.Number,
		"limit":        page.Size,
		"transactions": txns,
	})
}

// Download returns a single transaction as an attachment.
func (h *Handler) Download(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	id := c.Params("transactionId")
	txn, err := h.service.GetByID(c.UserContext(), uid, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return respond.Fail(c, http.StatusNotFound, respond.CodeNotFound, "Transaction not found")
	case errors.Is(err, ErrForbidden):
		return respond.Fail(c, http.StatusForbidden, respond.CodeForbidden, "You are not allowed to view this transaction")
	case err != nil:
		return err
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="transaction-%s.json"`, txn.ID))
	return respond.OK(c, http.StatusOK, "Transaction retrieved successfully", txn)
}

// Scheduled lists the caller's scheduled payments.
func (h *Handler) Scheduled(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	page := pageFrom(c)
	items, err := h.service.ListScheduled(c.UserContext(), uid, page)
	if err != nil {
		return err
	}
	return respond.OK(c, http.StatusOK, "Scheduled payments retrieved successfully", fiber.Map{
		"page":              page.Number,
		"limit":             page.Size,
		"scheduledPayments": items,
	})
}
