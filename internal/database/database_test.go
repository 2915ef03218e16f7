package database

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/fintrack/fintrack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDsn_EscapesCredentials(t *testing.T) {
	// given
	cfg := config.Database{Host: "db", Port: 6543, User: "ledger", Pass: "p@ss'word/1", Name: "fintrack", Schema: "books"}

	// when
	parsed, err := url.Parse(dsn(cfg))

	// then
	require.NoError(t, err)
	assert.Equal(t, "db:6543", parsed.Host)
	assert.Equal(t, "/fintrack", parsed.Path)
	password, _ := parsed.User.Password()
	assert.Equal(t, "p@ss'word/1", password)
	assert.Equal(t, "books", parsed.Query().Get("search_path"))
	assert.Equal(t, "disable", parsed.Query().Get("sslmode"))
}

func TestNoopTransactor_MarksUnitOfWork(t *testing.T) {
	// given
	ctx := context.Background()
	var inside bool

	// when
	err := NoopTransactor{}.InTx(ctx, func(ctx context.Context) error {
		inside = InTransaction(ctx)
		return nil
	})

	// then
	require.NoError(t, err)
	assert.True(t, inside)
	assert.False(t, InTransaction(ctx))
}

func TestNoopTransactor_ReturnsFnError(t *testing.T) {
	// given
	errBoom := errors.New("boom")

	// when
	err := NoopTransactor{}.InTx(context.Background(), func(ctx context.Context) error { return errBoom })

	// then
	assert.ErrorIs(t, err, errBoom)
}
