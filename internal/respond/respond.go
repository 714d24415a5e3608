package respond

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Error codes shared by handlers. Every error envelope carries one.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeTooManyRequests   = "TOO_MANY_REQUESTS"
	CodeInternal          = "INTERNAL"
	CodeInvalidReceiver   = "INVALID_RECEIVER"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeAmountTooSmall    = "AMOUNT_TOO_SMALL"
	CodeSenderNotFound    = "SENDER_NOT_FOUND"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeLedgerWriteFailed = "LEDGER_WRITE_FAILED"
)

// GenericFailure is the only message shown for infrastructure failures.
const GenericFailure = "Something went wrong, please try again later"

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK writes a success envelope.
func OK(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Status: statusSuccess, Message: message, Data: data})
}

// Fail writes an error envelope with a business discriminant.
func Fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Envelope{Status: statusError, Code: code, Message: message})
}

// ErrorHandler renders errors that escape handlers. fiber errors keep their
// status and message; anything else is logged and hidden behind a generic 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code >= http.StatusInternalServerError {
				logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
				return Fail(c, fe.Code, CodeInternal, GenericFailure)
			}
			return Fail(c, fe.Code, codeForStatus(fe.Code), fe.Message)
		}
		logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		return Fail(c, http.StatusInternalServerError, CodeInternal, GenericFailure)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	default:
		return CodeInternal
	}
}
