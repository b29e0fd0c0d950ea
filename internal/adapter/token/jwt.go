package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rl1809/sweet-shop/internal/core/domain"
)

const DefaultTTL = 24 * time.Hour

type SignedDetails struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 bearer tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (j *JWTIssuer) Issue(identity domain.Identity) (string, time.Time, error) {
	issuedAt := j.now()
	expiresAt := issuedAt.Add(j.ttl)
	claims := &SignedDetails{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (j *JWTIssuer) Verify(signed string) (domain.Identity, error) {
	claims := &SignedDetails{}
	_, err := jwt.ParseWithClaims(signed, claims,
		func(token *jwt.Token) (any, error) {
			return j.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%v: %w", err, domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("token has no subject: %w", domain.ErrUnauthorized)
	}
	return domain.Identity{UserID: claims.Subject, Role: domain.Role(claims.Role)}, nil
}
