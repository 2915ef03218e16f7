package user

import (
	"context"
	"errors"
)

type contextKey string

const UserKey contextKey = "user"

var ErrNoUser = errors.New("user not found")

// CurrentId returns the id of the owner the request or job acts for.
func CurrentId(ctx context.Context) (int, error) {
	u, ok := ctx.Value(UserKey).(User)
	if !ok {
		return 0, ErrNoUser
	}
	return u.Id, nil
}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// WithId is a shortcut for background jobs and tests that only know the owner id.
func WithId(ctx context.Context, id int) context.Context {
	return WithUser(ctx, User{Id: id})
}
