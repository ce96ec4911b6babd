package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateLifetime = 10 * time.Minute

var (
	ErrMissingState = errors.New("invalid request: missing state query-param")
	ErrInvalidState = errors.New("invalid request: invalid state query-param")
	ErrBadSignature = errors.New("failed signature verification")
)

// Signer wraps cookie values in HS256 tokens so that the backend can tell
// values it issued from forged ones.
type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(secretKey string) *Signer {
	return &Signer{key: []byte(secretKey), now: time.Now}
}

// Sign returns value signed and valid for ttl.
func (s *Signer) Sign(value string, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   value,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign cookie value: %w", err)
	}
	return signed, nil
}

// Verify returns the value signed into signed.
func (s *Signer) Verify(signed string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(signed, &claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if claims.Subject == "" {
		return "", ErrBadSignature
	}
	return claims.Subject, nil
}

func (s *Signer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return s.key, nil
}

// NewState returns the OAuth2 state parameter: a token expiring in ten minutes.
func NewState(secret string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(stateLifetime)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// VerifyState checks a state parameter returned by the authorization server.
func VerifyState(state, secret string, now time.Time) error {
	if state == "" {
		return ErrMissingState
	}

	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return nil
}
