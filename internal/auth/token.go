// Package auth issues and verifies the HMAC service tokens that identify
// callers of the custody API. A token binds a bearer to a single ledger
// address; what that address may do (mint, burn, onboard, release) is
// decided by the ledger's sealed role grants, never by the token itself.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/equigive/equigive/internal/ledger"
)

// Claims are the JWT claims for an EquiGive service token.
type Claims struct {
	jwt.RegisteredClaims
	Address string `json:"address"` // the caller's ledger address
	Actor   string `json:"actor,omitempty"`
}

// Issuer issues and verifies service tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates an Issuer.
//
//	secret — the shared HMAC key; all custody services hold the same one.
//	issuerURL — the "iss" claim value; matches the service's base URL.
//	ttl — token lifetime (default: 1 hour).
func NewIssuer(secret []byte, issuerURL string, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: secret, issuer: issuerURL, ttl: ttl}
}

// Issue creates a signed service token for the given ledger address.
// actor is a human-readable label ("donation-intake", "farmer:meadowbrook")
// carried for log context only.
func (i *Issuer) Issue(addr ledger.Address, actor string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   string(addr),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		Address: string(addr),
		Actor:   actor,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a service token, returning its claims.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify service token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid service token claims")
	}
	if claims.Address == "" {
		return nil, fmt.Errorf("service token missing address claim")
	}
	return claims, nil
}
