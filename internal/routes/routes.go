package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/toybank/toybank/internal/accounts"
	"github.com/toybank/toybank/internal/auth"
	"github.com/toybank/toybank/internal/config"
	"github.com/toybank/toybank/internal/funding"
	"github.com/toybank/toybank/internal/history"
	"github.com/toybank/toybank/internal/identity"
	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/middleware"
	"github.com/toybank/toybank/internal/notification"
	"github.com/toybank/toybank/internal/payments"
	"github.com/toybank/toybank/internal/scheduled"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
}

// Services holds the domain services built from Deps.
type Services struct {
	Ledger    ledger.Store
	Accounts  *accounts.Service
	Transfers *payments.Service
	History   *history.Service
	Scheduled *scheduled.Service
	Executor  *scheduled.Executor
	Funding   *funding.Service
	Identity  *identity.Service
	Tokens    *auth.Service
}

// NewServices selects backends and builds every service. Without a database
// or cache the in-memory backends are used, which only development allows.
func NewServices(d Deps) (*Services, error) {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	var (
		store    ledger.Store
		userRepo identity.Repository
		otps     identity.OTPStore
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		userRepo = identity.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		userRepo = identity.NewMemoryRepository()
	}
	if d.Cache != nil {
		otps = identity.NewRedisOTPStore(d.Cache)
	} else {
		otps = identity.NewMemoryOTPStore()
	}

	accts := accounts.NewService(store)
	transfers := payments.NewService(store, accts, notifier,
		payments.WithTimeout(d.Cfg.LedgerTimeout),
		payments.WithLogger(d.Logger),
	)

	return &Services{
		Ledger:    store,
		Accounts:  accts,
		Transfers: transfers,
		History:   history.NewService(store),
		Scheduled: scheduled.NewService(store, transfers),
		Executor:  scheduled.NewExecutor(store, transfers, notifier, d.Logger, d.Cfg.SchedulerInterval),
		Funding:   funding.NewService(store, nil),
		Identity:  identity.NewService(userRepo, otps, accts, notifier, d.Cfg.OTPTTL),
		Tokens:    auth.NewService(d.Cfg.JWTSecret, d.Cfg.TokenTTL, d.Cfg.OTPTTL),
	}, nil
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, s *Services) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	requireUser := middleware.JWTAuth(s.Tokens, s.Identity)
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	RegisterUserRoutes(api.Group("/user"), d, s, requireUser)
	RegisterTransactionRoutes(api.Group("/transactions", requireUser), d, s, idempotent)
}
