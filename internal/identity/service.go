package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/toybank/toybank/internal/notification"
)

var (
	// ErrFieldsRequired is returned when a mandatory input is blank.
	ErrFieldsRequired = errors.New("Fields required")
	// ErrOTPAlreadySent is returned on signup for an unverified duplicate.
	ErrOTPAlreadySent = errors.New("Otp already sent to your mail. Verify to continue")
	// ErrNotVerified is returned when an unverified user tries to log in.
	ErrNotVerified = errors.New("User is not verified. Check your mail for otp and verify registration")
	// ErrInvalidCredentials is returned for a wrong password.
	ErrInvalidCredentials = errors.New("Invalid credential")
	// ErrOwnProfile is returned when a user asks for their own masked profile.
	ErrOwnProfile = errors.New("Own data retrieval failed")
	// ErrAlreadyVerified is returned when a registration OTP is confirmed twice.
	ErrAlreadyVerified = errors.New("user already verified")
	// ErrNothingToUpdate is returned when a details update changes no field.
	ErrNothingToUpdate = errors.New("Nothing to update here")
	// ErrInvalidDateOfBirth is returned for a birth date that is not in the past.
	ErrInvalidDateOfBirth = errors.New("date of birth must be in the past")
)

// Accounts opens and closes the ledger account tied to a user.
type Accounts interface {
	Open(ctx context.Context, id string) error
	Close(ctx context.Context, id string) error
}

// Service manages identity lifecycle.
type Service struct {
	repo     Repository
	otps     OTPStore
	accounts Accounts
	notifier notification.Notifier
	otpTTL   time.Duration
	hashCost int
	now      func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, otps OTPStore, accounts Accounts, notifier notification.Notifier, otpTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		otps:     otps,
		accounts: accounts,
		notifier: notifier,
		otpTTL:   otpTTL,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// SignupInput is the registration form.
type SignupInput struct {
	FirstName   string
	LastName    string
	Username    string
	Email       string
	Password    string
	AccountType string
}

// Signup creates a PENDING user and mails a registration OTP.
func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if blank(in.FirstName, in.LastName, in.Username, in.Email, in.Password) {
		return User{}, ErrFieldsRequired
	}

	existing, err := s.repo.FindLive(ctx, in.Username, in.Email)
	switch {
	case err == nil && !existing.Verified() && existing.Email == in.Email:
		// A fresh code replaces the earlier one, which may have expired. The
		// pending registration itself is not changed.
		if err := s.sendOTP(ctx, existing.Email, OTPRegister); err != nil {
			return User{}, err
		}
		return User{}, ErrOTPAlreadySent
	case err == nil:
		return User{}, ErrUserExists
	case !errors.Is(err, ErrUserNotFound):
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		AccountType:  ParseAccountType(in.AccountType),
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	if err := s.sendOTP(ctx, user.Email, OTPRegister); err != nil {
		return User{}, err
	}
	return user, nil
}

// RequestOTP mails a code for a sensitive action by an authenticated user.
func (s *Service) RequestOTP(ctx context.Context, userID string, typ OTPType) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.sendOTP(ctx, user.Email, typ)
}

// VerifyOTP consumes a code. A REGISTER code activates the user and opens
// their ledger account; other types only prove control of the mailbox.
func (s *Service) VerifyOTP(ctx context.Context, email string, typ OTPType, code string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if blank(email, code) {
		return User{}, ErrFieldsRequired
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if typ == OTPRegister && user.Verified() {
		return User{}, ErrAlreadyVerified
	}
	if typ != OTPRegister && !user.Active() {
		return User{}, ErrNotVerified
	}
	if err := s.otps.Consume(ctx, email, typ, code); err != nil {
		return User{}, err
	}
	if typ != OTPRegister {
		return user, nil
	}

	if err := s.accounts.Open(ctx, user.ID); err != nil {
		return User{}, fmt.Errorf("open account: %w", err)
	}
	user.Status = StatusActive
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate checks email and password of an active user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if blank(email, password) {
		return User{}, ErrFieldsRequired
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !user.Verified() {
		return User{}, ErrNotVerified
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns a live user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.Deleted() {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// Profile returns another user's profile with the first name masked.
func (s *Service) Profile(ctx context.Context, callerID, profileID string) (Profile, error) {
	if callerID == profileID {
		return Profile{}, ErrOwnProfile
	}
	user, err := s.Get(ctx, profileID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:        user.ID,
		FirstName: maskFirstName(user.FirstName),
		LastName:  user.LastName,
		Username:  user.Username,
	}, nil
}

// UpdateInput carries the self-service detail changes. Blank names and a nil
// date are left untouched.
type UpdateInput struct {
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
}

// UpdateMe applies the changed details of the caller. Passwords go through
// ChangePassword, which needs a verified OTP.
func (s *Service) UpdateMe(ctx context.Context, userID string, in UpdateInput) (User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}

	changed := false
	if name := strings.TrimSpace(in.FirstName); name != "" && name != user.FirstName {
		user.FirstName, changed = name, true
	}
	if name := strings.TrimSpace(in.LastName); name != "" && name != user.LastName {
		user.LastName, changed = name, true
	}
	if in.DateOfBirth != nil {
		dob := time.Date(in.DateOfBirth.Year(), in.DateOfBirth.Month(), in.DateOfBirth.Day(), 0, 0, 0, 0, time.UTC)
		if !dob.Before(s.now().UTC()) {
			return User{}, ErrInvalidDateOfBirth
		}
		if user.DateOfBirth == nil || !user.DateOfBirth.Equal(dob) {
			user.DateOfBirth, changed = &dob, true
		}
	}
	if !changed {
		return User{}, ErrNothingToUpdate
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ChangePassword sets a new password and revokes existing sessions.
func (s *Service) ChangePassword(ctx context.Context, userID, password string) error {
	if blank(password) {
		return ErrFieldsRequired
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.TokenVersion++
	return s.repo.Update(ctx, user)
}

// Delete closes the user and their ledger account. History is kept.
func (s *Service) Delete(ctx context.Context, userID string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.accounts.Close(ctx, user.ID); err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	user.Status = StatusClosed
	user.TokenVersion++
	return s.repo.Update(ctx, user)
}

// Logout invalidates every token issued so far.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	user.TokenVersion++
	return s.repo.Update(ctx, user)
}

func (s *Service) sendOTP(ctx context.Context, email string, typ OTPType) error {
	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, email, typ, code, s.otpTTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindOTP,
		Destination: email,
		Body:        fmt.Sprintf("Your %s code is valid for %s: %s", strings.ToLower(string(typ)), s.otpTTL, code),
	})
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
