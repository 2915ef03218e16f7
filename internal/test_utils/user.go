package test_utils

import (
	"context"

	"github.com/fintrack/fintrack/pkg/user"
)

const TestUserId = 123

func TestUser() user.User {
	return user.User{
		Id:          TestUserId,
		Uid:         "test-user",
		Username:    "test_user",
		DisplayName: "Test User",
		Currency:    "USD",
	}
}

// UserContext returns a context authenticated as TestUser.
func UserContext() context.Context {
	return user.WithUser(context.Background(), TestUser())
}
