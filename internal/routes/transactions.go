package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/toybank/toybank/internal/funding"
	"github.com/toybank/toybank/internal/history"
	"github.com/toybank/toybank/internal/payments"
	"github.com/toybank/toybank/internal/scheduled"
)

// RegisterTransactionRoutes wires money movement and history endpoints. The
// router must already require an authenticated user.
func RegisterTransactionRoutes(r fiber.Router, d Deps, s *Services, idempotent fiber.Handler) {
	transfers := payments.NewHandler(s.Transfers, d.Logger)
	queries := history.NewHandler(s.History)
	schedules := scheduled.NewHandler(s.Scheduled, d.Logger)
	deposits := funding.NewHandler(s.Funding)

	r.Post("/transfer/:receiverId/balance", idempotent, transfers.Transfer)
	r.Get("/all", queries.All)
	r.Get("/download/:transactionId", queries.Download)
	r.Get("/scheduled-payments", queries.Scheduled)
	r.Post("/scheduled-payment", idempotent, schedules.Create)
	r.Post("/deposit/card", idempotent, deposits.CardIn)
}
