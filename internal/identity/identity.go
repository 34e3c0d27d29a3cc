// Package identity carries the requesting learner through a request.
// Authentication happens upstream; this package only transports its result.
package identity

import (
	"context"
	"strconv"
	"strings"
)

// User is the authenticated principal, or the anonymous zero value.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Anonymous is the unauthenticated user.
var Anonymous = User{}

func (u User) IsAuthenticated() bool {
	return u.ID > 0
}

// Key renders the user id the way it is stored on enrollment rows.
func (u User) Key() string {
	if !u.IsAuthenticated() {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

type userContextKey struct{}

// WithUser stores the user in the context.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user from context, or Anonymous.
func UserFromContext(ctx context.Context) User {
	if ctx == nil {
		return Anonymous
	}
	if user, ok := ctx.Value(userContextKey{}).(User); ok {
		return user
	}
	return Anonymous
}

// Parse builds a User from the upstream identity headers. An unparsable id
// yields Anonymous.
func Parse(rawID, username, email string) User {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return Anonymous
	}
	return User{
		ID:       id,
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
	}
}
