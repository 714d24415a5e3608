package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/toybank/toybank/internal/respond"
)

// Grant purposes and the cookies that carry them. A grant proves a fresh OTP
// check and unlocks one sensitive action.
const (
	GrantPasswordReset  = "password_reset"
	GrantAccountDelete  = "account_delete"
	PasswordResetCookie = "password_reset_token"
	AccountDeleteCookie = "account_delete_token"
)

// GrantIssuer signs short-lived grants after an OTP check.
type GrantIssuer interface {
	IssueGrant(userID, purpose string) (string, time.Time, error)
}

// Handler exposes identity endpoints.
type Handler struct {
	service       *Service
	grants        GrantIssuer
	secureCookies bool
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, grants GrantIssuer, secureCookies bool) *Handler {
	return &Handler{service: service, grants: grants, secureCookies: secureCookies}
}

type signupRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"accountType"`
}

// Signup registers a user and mails the registration OTP.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusUnprocessableEntity, respond.CodeBadRequest, "Invalid input format")
	}
	user, err := h.service.Signup(c.UserContext(), SignupInput(req))
	if err != nil {
		return WriteError(c, err)
	}
	return respond.OK(c, http.StatusCreated, "Otp sent to your email. Verify the otp to create account", fiber.Map{"userId": user.ID})
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP confirms a code for the flow named by :type.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	typ, ok := ParseOTPType(c.Params("type"))
	if !ok {
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, "Unknown otp type")
	}
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusUnprocessableEntity, respond.CodeBadRequest, "Invalid input format")
	}

	user, err := h.service.VerifyOTP(c.UserContext(), req.Email, typ, req.OTP)
	if errors.Is(err, ErrOTPNotFound) && typ == OTPRegister {
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, "Registration is necessary before otp verification")
	}
	if err != nil {
		return WriteError(c, err)
	}

	var purpose, cookie string
	switch typ {
	case OTPRegister:
		return respond.OK(c, http.StatusOK, "Verification successful, You can now login", nil)
	case OTPChangePassword:
		purpose, cookie = GrantPasswordReset, PasswordResetCookie
	case OTPDelete:
		purpose, cookie = GrantAccountDelete, AccountDeleteCookie
	}

	token, expires, err := h.grants.IssueGrant(user.ID, purpose)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     cookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond.OK(c, http.StatusOK, "Otp verified", fiber.Map{"token": token, "expiresAt": expires})
}

// Me returns the caller's own details.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), userID(c))
	if err != nil {
		return WriteError(c, err)
	}
	return respond.OK(c, http.StatusOK, "Details retrieved", ViewOf(user))
}

type updateMeRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
}

// UpdateMe changes the caller's names or date of birth (YYYY-MM-DD).
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusUnprocessableEntity, respond.CodeBadRequest, "Invalid input format")
	}
	in := UpdateInput{FirstName: req.FirstName, LastName: req.LastName}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(time.DateOnly, req.DateOfBirth)
		if err != nil {
			return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, "dateOfBirth must be YYYY-MM-DD")
		}
		in.DateOfBirth = &dob
	}

	user, err := h.service.UpdateMe(c.UserContext(), userID(c), in)
	if err != nil {
		return WriteError(c, err)
	}
	return respond.OK(c, http.StatusOK, "Profile updated successfully", ViewOf(user))
}

// Profile returns another user's masked profile.
func (h *Handler) Profile(c *fiber.Ctx) error {
	profile, err := h.service.Profile(c.UserContext(), userID(c), c.Params("profileId"))
	if err != nil {
		return WriteError(c, err)
	}
	return respond.OK(c, http.StatusOK, "User found", profile)
}

// RequestPasswordChange mails a CHANGE_PASSWORD code.
func (h *Handler) RequestPasswordChange(c *fiber.Ctx) error {
	return h.requestOTP(c, OTPChangePassword)
}

// RequestDelete mails a DELETE code.
func (h *Handler) RequestDelete(c *fiber.Ctx) error {
	return h.requestOTP(c, OTPDelete)
}

func (h *Handler) requestOTP(c *fiber.Ctx, typ OTPType) error {
	if err := h.service.RequestOTP(c.UserContext(), userID(c), typ); err != nil {
		return WriteError(c, err)
	}
	return respond.OK(c, http.StatusOK, "Otp sent to your email", nil)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// ChangePassword sets a new password. Requires a password reset grant.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.Fail(c, http.StatusUnprocessableEntity, respond.CodeBadRequest, "Invalid input format")
	}
	if err := h.service.ChangePassword(c.UserContext(), userID(c), req.Password); err != nil {
		return WriteError(c, err)
	}
	c.ClearCookie(PasswordResetCookie)
	return respond.OK(c, http.StatusOK, "Password updated, please login again", nil)
}

// Delete closes the caller's account. Requires an account delete grant.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), userID(c)); err != nil {
		return WriteError(c, err)
	}
	c.ClearCookie(AccountDeleteCookie)
	return respond.OK(c, http.StatusOK, "Account deleted", nil)
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

// WriteError renders identity errors as envelopes.
func WriteError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrFieldsRequired):
		return respond.Fail(c, http.StatusUnprocessableEntity, respond.CodeBadRequest, err.Error())
	case errors.Is(err, ErrUserExists):
		return respond.Fail(c, http.StatusConflict, respond.CodeConflict, "User already exists with this username or email. Try with different email or username")
	case errors.Is(err, ErrOTPAlreadySent), errors.Is(err, ErrAlreadyVerified):
		return respond.Fail(c, http.StatusConflict, respond.CodeConflict, err.Error())
	case errors.Is(err, ErrUserNotFound):
		return respond.Fail(c, http.StatusNotFound, respond.CodeNotFound, "User not found")
	case errors.Is(err, ErrNotVerified):
		return respond.Fail(c, http.StatusForbidden, respond.CodeForbidden, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return respond.Fail(c, http.StatusUnauthorized, respond.CodeUnauthorized, err.Error())
	case errors.Is(err, ErrOwnProfile), errors.Is(err, ErrInvalidOTP), errors.Is(err, ErrOTPNotFound),
		errors.Is(err, ErrNothingToUpdate), errors.Is(err, ErrInvalidDateOfBirth):
		return respond.Fail(c, http.StatusBadRequest, respond.CodeBadRequest, err.Error())
	default:
		return err
	}
}
