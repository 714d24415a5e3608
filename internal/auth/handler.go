package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/toybank/toybank/internal/identity"
	"github.com/toybank/toybank/internal/respond"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "token"

// Handler exposes login and logout.
type Handler struct {
	ids           *identity.Service
	svc           *Service
	secureCookies bool
}

// NewHandler constructs an auth handler.
func NewHandler(ids *identity.Service, svc *Service, secureCookies bool) *Handler {
	return &Handler{ids: ids, svc: svc, secureCookies: secureCookies}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials, sets the session cookie and returns the token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusUnprocessableEntity, respond.CodeBadRequest, "Invalid input format")
	}
	user, err := h.ids.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return identity.WriteError(c, err)
	}
	token, expires, err := h.svc.Issue(user)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond.OK(c, http.StatusOK, "Login successful", fiber.Map{
		"userId":    user.ID,
		"token":     token,
		"expiresAt": expires,
	})
}

// Logout revokes every token of the caller and clears the cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.ids.Logout(c.UserContext(), uid); err != nil {
		return identity.WriteError(c, err)
	}
	c.ClearCookie(SessionCookie)
	return respond.OK(c, http.StatusOK, "Logout successful", nil)
}
