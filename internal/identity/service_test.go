package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/toybank/toybank/internal/accounts"
	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/notification"
)

type fixture struct {
	svc   *Service
	repo  Repository
	otps  *MemoryOTPStore
	store ledger.Store
	rec   *notification.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewInMemory()
	rec := &notification.Recorder{}
	repo := NewMemoryRepository()
	otps := NewMemoryOTPStore()
	svc := NewService(repo, otps, accounts.NewService(store), rec, 10*time.Minute)
	svc.hashCost = bcrypt.MinCost
	return &fixture{svc: svc, repo: repo, otps: otps, store: store, rec: rec}
}

func (f *fixture) lastCode(t *testing.T) string {
	t.Helper()
	msg, ok := f.rec.Last(notification.KindOTP)
	require.True(t, ok, "expected an otp notification")
	return msg.Body[len(msg.Body)-6:]
}

func (f *fixture) activeUser(t *testing.T, username, email string) User {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, SignupInput{FirstName: "Alexandra", LastName: "Doe", Username: username, Email: email, Password: "s3cret!"})
	require.NoError(t, err)
	user, err := f.svc.VerifyOTP(ctx, email, OTPRegister, f.lastCode(t))
	require.NoError(t, err)
	return user
}

func TestSignupAndVerifyOpensAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, SignupInput{
		FirstName: "Ada", LastName: "Lovelace", Username: "ada", Email: "Ada@Example.com", Password: "pw", AccountType: "current",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, user.Status)
	assert.Equal(t, AccountCurrent, user.AccountType)
	assert.Equal(t, "ada@example.com", user.Email)

	msg, ok := f.rec.Last(notification.KindOTP)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", msg.Destination)

	_, err = f.store.Account(ctx, user.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound, "account opens only after verification")

	_, err = f.svc.Authenticate(ctx, "ada@example.com", "pw")
	assert.ErrorIs(t, err, ErrNotVerified)

	_, err = f.svc.VerifyOTP(ctx, "ada@example.com", OTPRegister, "000000")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	verified, err := f.svc.VerifyOTP(ctx, "ada@example.com", OTPRegister, f.lastCode(t))
	require.NoError(t, err)
	assert.True(t, verified.Active())

	acct, err := f.store.Account(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())

	got, err := f.svc.Authenticate(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := SignupInput{FirstName: "Bo", LastName: "B", Username: "bo", Email: "bo@example.com", Password: "pw"}

	_, err := f.svc.Signup(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, in)
	assert.ErrorIs(t, err, ErrOTPAlreadySent)

	_, err = f.svc.VerifyOTP(ctx, in.Email, OTPRegister, f.lastCode(t))
	require.NoError(t, err)

	other := in
	other.Email = "other@example.com"
	_, err = f.svc.Signup(ctx, other)
	assert.ErrorIs(t, err, ErrUserExists, "username is taken")

	_, err = f.svc.Signup(ctx, SignupInput{Username: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrFieldsRequired)
}

func TestOTPIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, SignupInput{FirstName: "Cy", LastName: "C", Username: "cy", Email: "cy@example.com", Password: "pw"})
	require.NoError(t, err)
	code := f.lastCode(t)

	_, err = f.svc.VerifyOTP(ctx, "cy@example.com", OTPRegister, code)
	require.NoError(t, err)
	_, err = f.svc.VerifyOTP(ctx, "cy@example.com", OTPRegister, code)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestProfileMasksFirstName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alex := f.activeUser(t, "alex", "alex@example.com")
	sam := f.activeUser(t, "sam", "sam@example.com")

	profile, err := f.svc.Profile(ctx, sam.ID, alex.ID)
	require.NoError(t, err)
	assert.Equal(t, "***andra", profile.FirstName)
	assert.Equal(t, "alex", profile.Username)

	_, err = f.svc.Profile(ctx, alex.ID, alex.ID)
	assert.ErrorIs(t, err, ErrOwnProfile)

	_, err = f.svc.Profile(ctx, alex.ID, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.Equal(t, "***", maskFirstName("Ann"))
}

func TestChangePasswordRequiresOTPAndRevokesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "dee", "dee@example.com")

	_, err := f.svc.VerifyOTP(ctx, "dee@example.com", OTPChangePassword, "123456")
	assert.ErrorIs(t, err, ErrOTPNotFound)

	require.NoError(t, f.svc.RequestOTP(ctx, user.ID, OTPChangePassword))
	_, err = f.svc.VerifyOTP(ctx, "dee@example.com", OTPChangePassword, f.lastCode(t))
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "n3w"))
	updated, err := f.svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.TokenVersion+1, updated.TokenVersion)

	_, err = f.svc.Authenticate(ctx, "dee@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "dee@example.com", "n3w")
	assert.NoError(t, err)
}

func TestDeleteClosesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "eve", "eve@example.com")

	require.NoError(t, f.svc.Delete(ctx, user.ID))

	acct, err := f.store.Account(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, acct.Active())

	_, err = f.svc.Get(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.svc.Authenticate(ctx, "eve@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.Signup(ctx, SignupInput{FirstName: "Eve", LastName: "E", Username: "eve", Email: "eve@example.com", Password: "pw"})
	assert.NoError(t, err, "a deleted user's username and email are free again")
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, AccountSaving, ParseAccountType(""))
	assert.Equal(t, AccountFixed, ParseAccountType("FIXED"))

	typ, ok := ParseOTPType("password")
	assert.True(t, ok)
	assert.Equal(t, OTPChangePassword, typ)
	_, ok = ParseOTPType("pin")
	assert.False(t, ok)
}

func TestSignupResendsExpiredRegistrationCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.otps.now = func() time.Time { return now }
	in := SignupInput{FirstName: "Cy", LastName: "C", Username: "cy", Email: "cy@example.com", Password: "pw"}

	first, err := f.svc.Signup(ctx, in)
	require.NoError(t, err)
	expired := f.lastCode(t)

	now = now.Add(11 * time.Minute)
	_, err = f.svc.VerifyOTP(ctx, in.Email, OTPRegister, expired)
	require.ErrorIs(t, err, ErrOTPNotFound)

	_, err = f.svc.Signup(ctx, in)
	require.ErrorIs(t, err, ErrOTPAlreadySent)
	assert.Len(t, f.rec.Messages, 2, "a fresh code is mailed")

	user, err := f.svc.VerifyOTP(ctx, in.Email, OTPRegister, f.lastCode(t))
	require.NoError(t, err)
	assert.Equal(t, first.ID, user.ID)
	assert.Equal(t, StatusActive, user.Status)
}

func TestSignupPendingUsernameWithOtherEmailIsTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := SignupInput{FirstName: "Di", LastName: "D", Username: "di", Email: "di@example.com", Password: "pw"}
	_, err := f.svc.Signup(ctx, in)
	require.NoError(t, err)

	in.Email = "someone-else@example.com"
	_, err = f.svc.Signup(ctx, in)
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Len(t, f.rec.Messages, 1, "no code is mailed to the pending address")
}

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	user := f.activeUser(t, "eve", "eve@example.com")

	dob := time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.UpdateMe(ctx, user.ID, UpdateInput{FirstName: " Evelyn ", DateOfBirth: &dob})
	require.NoError(t, err)
	assert.Equal(t, "Evelyn", updated.FirstName)
	assert.Equal(t, "Doe", updated.LastName)
	require.NotNil(t, updated.DateOfBirth)
	assert.True(t, updated.DateOfBirth.Equal(dob))
	assert.Equal(t, user.TokenVersion, updated.TokenVersion, "sessions stay valid")

	stored, err := f.svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evelyn", stored.FirstName)

	_, err = f.svc.UpdateMe(ctx, user.ID, UpdateInput{FirstName: "Evelyn", DateOfBirth: &dob})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.UpdateMe(ctx, user.ID, UpdateInput{DateOfBirth: &future})
	assert.ErrorIs(t, err, ErrInvalidDateOfBirth)

	_, err = f.svc.UpdateMe(ctx, "missing", UpdateInput{FirstName: "X"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
