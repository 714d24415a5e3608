package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/toybank/toybank/internal/accounts"
	"github.com/toybank/toybank/internal/auth"
	"github.com/toybank/toybank/internal/identity"
	"github.com/toybank/toybank/internal/middleware"
)

// RegisterUserRoutes wires signup, OTP verification, sessions and profile endpoints.
func RegisterUserRoutes(r fiber.Router, d Deps, s *Services, requireUser fiber.Handler) {
	secure := d.Cfg.IsProduction()
	users := identity.NewHandler(s.Identity, s.Tokens, secure)
	sessions := auth.NewHandler(s.Identity, s.Tokens, secure)
	balances := accounts.NewHandler(s.Accounts)

	r.Post("/signup", users.Signup)
	r.Post("/otp-verification/:type", users.VerifyOTP)
	r.Post("/login", middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit), sessions.Login)

	r.Use(requireUser)
	r.Get("/me", users.Me)
	r.Put("/me", users.UpdateMe)
	r.Get("/profile/:profileId", users.Profile)
	r.Get("/balance", balances.Balance)
	r.Post("/logout", sessions.Logout)

	r.Post("/password", users.RequestPasswordChange)
	r.Put("/password",
		middleware.RequireGrant(s.Tokens, identity.PasswordResetCookie, identity.GrantPasswordReset),
		users.ChangePassword)

	r.Post("/deleteAccount", users.RequestDelete)
	r.Delete("/deleteAccount",
		middleware.RequireGrant(s.Tokens, identity.AccountDeleteCookie, identity.GrantAccountDelete),
		users.Delete)
}
