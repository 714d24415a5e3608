package identity

import (
	"strings"
	"time"
)

// AccountType is the product a user signed up for.
type AccountType string

const (
	AccountSaving  AccountType = "SAVING"
	AccountCurrent AccountType = "CURRENT"
	AccountFixed   AccountType = "FIXED"
)

// ParseAccountType defaults to SAVING for anything unrecognised.
func ParseAccountType(v string) AccountType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "current":
		return AccountCurrent
	case "fixed":
		return AccountFixed
	default:
		return AccountSaving
	}
}

// Status tracks where a user is in the signup and closure lifecycle.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusClosed  Status = "CLOSED"
)

// User represents a registered customer. The user id doubles as the ledger
// account id.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash []byte
	DateOfBirth  *time.Time
	AccountType  AccountType
	Status       Status
	TokenVersion int
	CreatedAt    time.Time
}

// Verified reports whether the signup OTP was confirmed.
func (u User) Verified() bool { return u.Status != StatusPending }

// Deleted reports whether the user closed their account.
func (u User) Deleted() bool { return u.Status == StatusClosed }

// Active reports whether the user may log in and transact.
func (u User) Active() bool { return u.Status == StatusActive }

// View is the JSON shape of the caller's own details.
type View struct {
	ID          string      `json:"userId"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	DateOfBirth *time.Time  `json:"dateOfBirth,omitempty"`
	AccountType AccountType `json:"accountType"`
	Status      Status      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// ViewOf builds the caller-facing view of u.
func ViewOf(u User) View {
	return View{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Username:    u.Username,
		Email:       u.Email,
		DateOfBirth: u.DateOfBirth,
		AccountType: u.AccountType,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt,
	}
}

// Profile is what one user may see about another.
type Profile struct {
	ID        string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

func maskFirstName(name string) string {
	r := []rune(name)
	if len(r) <= 4 {
		return "***"
	}
	return "***" + string(r[4:])
}

// OTPType scopes a one-time passcode to one flow.
type OTPType string

const (
	OTPRegister       OTPType = "REGISTER"
	OTPChangePassword OTPType = "CHANGE_PASSWORD"
	OTPDelete         OTPType = "DELETE"
)

// ParseOTPType maps the verification path segment to an OTP type.
func ParseOTPType(v string) (OTPType, bool) {
	switch strings.ToLower(v) {
	case "register":
		return OTPRegister, true
	case "password":
		return OTPChangePassword, true
	case "delete":
		return OTPDelete, true
	default:
		return "", false
	}
}
