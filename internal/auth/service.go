package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/toybank/toybank/internal/identity"
)

// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "toybank"

// Claims carried by session tokens and OTP grants.
type Claims struct {
	Username string `json:"username,omitempty"`
	Version  int    `json:"ver"`
	Purpose  string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 tokens.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
	grantTTL time.Duration
	now      func() time.Time
}

// NewService builds a token service. grantTTL bounds OTP grants.
func NewService(secret string, tokenTTL, grantTTL time.Duration) *Service {
	return &Service{secret: []byte(secret), tokenTTL: tokenTTL, grantTTL: grantTTL, now: time.Now}
}

// Issue signs a session token for user.
func (s *Service) Issue(user identity.User) (string, time.Time, error) {
	return s.sign(Claims{Username: user.Username, Version: user.TokenVersion}, user.ID, s.tokenTTL)
}

// IssueGrant signs a token that unlocks one sensitive action for userID.
func (s *Service) IssueGrant(userID, purpose string) (string, time.Time, error) {
	return s.sign(Claims{Purpose: purpose}, userID, s.grantTTL)
}

// Parse verifies a session token.
func (s *Service) Parse(token string) (Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Purpose != "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// ParseGrant verifies a grant issued for purpose.
func (s *Service) ParseGrant(token, purpose string) (Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Purpose != purpose {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) sign(claims Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Service) parse(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
