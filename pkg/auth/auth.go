// Package auth resolves the user behind a request. Writes that create
// namespaces need an owner; reads do not.
package auth

import (
	"context"
	"errors"
)

var (
	// ErrNoUser is returned by operations that require an authenticated user
	// when the gateway resolved none.
	ErrNoUser = errors.New("authenticated user required")

	// ErrInvalidToken is returned when a bearer token is present but cannot
	// be verified.
	ErrInvalidToken = errors.New("invalid token")
)

// User is the caller of an operation.
type User struct {
	ID         string         `json:"id"`
	Username   string         `json:"username,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Gateway resolves the current user from a request context. It returns
// (nil, nil) when the request carries no identity.
type Gateway interface {
	GetUser(ctx context.Context) (*User, error)
}

// RequireUser resolves the user and fails with ErrNoUser when there is none.
func RequireUser(ctx context.Context, g Gateway) (*User, error) {
	if g == nil {
		return nil, ErrNoUser
	}

	u, err := g.GetUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil || u.ID == "" {
		return nil, ErrNoUser
	}
	return u, nil
}

type tokenKey struct{}

// WithToken attaches a bearer token to ctx for token-based gateways.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached with WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Static is a Gateway that resolves every request to the same user, or to
// none when constructed with nil.
type Static struct {
	user *User
}

func NewStatic(user *User) *Static {
	return &Static{user: user}
}

func (s *Static) GetUser(context.Context) (*User, error) {
	return s.user, nil
}
