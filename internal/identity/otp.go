package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpMin      = 100000
	otpSpan     = 900000
	otpPrefix   = "otp:v1:"
	otpHashCost = bcrypt.MinCost
)

var (
	// ErrOTPNotFound is returned when no live code exists for the email and type.
	ErrOTPNotFound = errors.New("no pending otp for this request")
	// ErrInvalidOTP is returned when the code does not match.
	ErrInvalidOTP = errors.New("Invalid Otp")
)

// OTPStore keeps hashed one-time passcodes until they are used or expire.
type OTPStore interface {
	// Save replaces any pending code of the same type for email.
	Save(ctx context.Context, email string, typ OTPType, code string, ttl time.Duration) error
	// Consume succeeds at most once per saved code.
	Consume(ctx context.Context, email string, typ OTPType, code string) error
}

// GenerateOTP returns a uniformly random six digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}

func otpKey(email string, typ OTPType) string {
	return otpPrefix + string(typ) + ":" + strings.ToLower(email)
}

func hashOTP(code string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(code), otpHashCost)
}

// RedisOTPStore stores codes under expiring keys.
type RedisOTPStore struct {
	cache *redis.Client
}

// NewRedisOTPStore builds a Redis-backed OTP store.
func NewRedisOTPStore(cache *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{cache: cache}
}

// Save stores the hashed code with ttl.
func (s *RedisOTPStore) Save(ctx context.Context, email string, typ OTPType, code string, ttl time.Duration) error {
	hash, err := hashOTP(code)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, otpKey(email, typ), hash, ttl).Err()
}

// Consume checks the code and deletes it. Only the caller whose delete
// removed the key wins, so concurrent use of one code succeeds once.
func (s *RedisOTPStore) Consume(ctx context.Context, email string, typ OTPType, code string) error {
	key := otpKey(email, typ)
	hash, err := s.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		return ErrInvalidOTP
	}
	removed, err := s.cache.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if removed != 1 {
		return ErrOTPNotFound
	}
	return nil
}

type memoryOTP struct {
	hash      []byte
	expiresAt time.Time
}

// MemoryOTPStore keeps codes in process memory.
type MemoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]memoryOTP
	now   func() time.Time
}

// NewMemoryOTPStore builds an in-memory OTP store.
func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{codes: make(map[string]memoryOTP), now: time.Now}
}

// Save stores the hashed code with ttl.
func (s *MemoryOTPStore) Save(_ context.Context, email string, typ OTPType, code string, ttl time.Duration) error {
	hash, err := hashOTP(code)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[otpKey(email, typ)] = memoryOTP{hash: hash, expiresAt: s.now().Add(ttl)}
	return nil
}

// Consume checks the code and deletes it.
func (s *MemoryOTPStore) Consume(_ context.Context, email string, typ OTPType, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := otpKey(email, typ)
	entry, ok := s.codes[key]
	if !ok {
		return ErrOTPNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.codes, key)
		return ErrOTPNotFound
	}
	if bcrypt.CompareHashAndPassword(entry.hash, []byte(code)) != nil {
		return ErrInvalidOTP
	}
	delete(s.codes, key)
	return nil
}
