package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload understood by JWTGateway. The subject is the
// user id.
type Claims struct {
	Username   string         `json:"username,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	jwt.RegisteredClaims
}

// JWTGateway resolves users from HS256 bearer tokens attached with WithToken.
// Requests without a token resolve to no user; requests with a bad token
// fail with ErrInvalidToken.
type JWTGateway struct {
	secret   []byte
	fallback Gateway
}

// NewJWTGateway creates a gateway verifying tokens with secret. When fallback
// is non-nil it resolves requests that carry no token.
func NewJWTGateway(secret string, fallback Gateway) (*JWTGateway, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTGateway{secret: []byte(secret), fallback: fallback}, nil
}

func (g *JWTGateway) GetUser(ctx context.Context) (*User, error) {
	raw := TokenFrom(ctx)
	if raw == "" {
		if g.fallback != nil {
			return g.fallback.GetUser(ctx)
		}
		return nil, nil
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &User{
		ID:         claims.Subject,
		Username:   claims.Username,
		Attributes: claims.Attributes,
	}, nil
}

// IssueToken signs a token for user that expires after ttl.
func (g *JWTGateway) IssueToken(user User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:   user.Username,
		Attributes: user.Attributes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}
