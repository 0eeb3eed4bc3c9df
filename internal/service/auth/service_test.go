package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/auth"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
	repo "github.com/Additional-Code/orderdesk/internal/repository/user"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

func newTestService(t *testing.T) (*Service, *database.Connections) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*entity.User)(nil)).Exec(ctx)
	require.NoError(t, err)

	conns := &database.Connections{Writer: db, Reader: db}

	cfg := config.Config{}
	cfg.Auth = config.Auth{
		Secret:     "unit-test-secret",
		Algorithm:  "HS256",
		TokenTTL:   15 * time.Minute,
		BcryptCost: 4,
	}

	svc := NewService(Params{
		Repository: repo.NewRepository(conns),
		Hasher:     auth.NewHasher(cfg.Auth.BcryptCost),
		Tokens:     auth.NewTokenIssuer(cfg.Auth),
		Config:     cfg,
		Logger:     zap.NewNop(),
	})
	return svc, conns
}

func TestRegisterCreatesUser(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Other Alice", "alice@example.com", "different")
	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
	assert.Equal(t, "email already registered", appErr.Message())
}

func TestLoginIssuesBearerToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 15, resp.ExpiresIn)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "alice@example.com", password: "wrong"},
		{name: "unknown email", email: "nobody@example.com", password: "secret1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.email, tt.password)
			require.Error(t, err)
			appErr := errorbank.From(err)
			assert.Equal(t, errorbank.KindUnauthenticated, appErr.Kind())
			assert.Equal(t, "incorrect email or password", appErr.Message())
		})
	}
}

func TestResolveRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	registered, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	user, err := svc.Resolve(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t)

	for _, token := range []string{"", "garbage", "aaaa.bbbb.cccc"} {
		_, err := svc.Resolve(context.Background(), token)
		require.Error(t, err, "token %q", token)
		assert.Equal(t, errorbank.KindUnauthenticated, errorbank.From(err).Kind())
	}
}

func TestResolveDeletedUser(t *testing.T) {
	svc, conns := newTestService(t)

	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	// The account disappearing after the token was minted must read the
	// same as a bad token.
	_, err = conns.Writer.NewDelete().Model((*entity.User)(nil)).
		Where("email = ?", "alice@example.com").
		Exec(context.Background())
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), resp.AccessToken)
	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindUnauthenticated, appErr.Kind())
	assert.Equal(t, "could not validate credentials", appErr.Message())
}
