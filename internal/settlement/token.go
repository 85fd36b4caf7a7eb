// Package settlement applies the monetary outcome of matured option bets.
// Settlement runs on the system's own authority: it mints a short-lived
// administrator token per run instead of borrowing a user's bearer token.
package settlement

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints administrator tokens for settlement calls to the Account &
// Position Service.
type Signer struct {
	Secret []byte
	TTL    time.Duration
}

// NewSigner builds a signer. ttl defaults to 30 minutes, long enough for one
// settlement run.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Signer{Secret: []byte(secret), TTL: ttl}
}

// Mint issues an HS512 token acting as the given user with the administrator
// role.
func (s *Signer) Mint(userID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": userID,
		"roles":  []string{"ROLE_ADMIN"},
		"sub":    email,
		"iat":    now.Unix(),
		"exp":    now.Add(s.TTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign settlement token: %w", err)
	}
	return signed, nil
}
