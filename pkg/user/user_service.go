package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrUserDataInvalid = errors.New("invalid user data")

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

const defaultCurrency = "USD"

type Service interface {
	GetCurrentUser(ctx context.Context) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
}

type UserServiceImpl struct {
	repo Repo
}

func NewUserService(repo Repo) *UserServiceImpl {
	return &UserServiceImpl{repo: repo}
}

func (u *UserServiceImpl) GetCurrentUser(ctx context.Context) (User, error) {
	userId, err := CurrentId(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return u.repo.GetUser(ctx, userId)
}

// CreateUser stores a new owner. Amounts are never converted, so the currency is fixed here.
func (u *UserServiceImpl) CreateUser(ctx context.Context, user User) (User, error) {
	user.Username = strings.TrimSpace(user.Username)
	if user.Uid == "" || user.Username == "" {
		return User{}, fmt.Errorf("%w: uid and username are required", ErrUserDataInvalid)
	}
	user.Currency = strings.ToUpper(strings.TrimSpace(user.Currency))
	if user.Currency == "" {
		user.Currency = defaultCurrency
	}
	if !currencyCode.MatchString(user.Currency) {
		return User{}, fmt.Errorf("%w: currency %q is not an ISO code", ErrUserDataInvalid, user.Currency)
	}

	userId, err := u.repo.CreateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.Id = userId
	return user, nil
}

func (u *UserServiceImpl) GetUser(ctx context.Context, id int) (User, error) {
	return u.repo.GetUser(ctx, id)
}

func (u *UserServiceImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return u.repo.GetUserByUid(ctx, uid)
}

func (u *UserServiceImpl) GetAllUsers(ctx context.Context) ([]User, error) {
	return u.repo.GetAllUsers(ctx)
}
