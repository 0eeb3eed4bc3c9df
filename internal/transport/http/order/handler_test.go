package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
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
	orderrepo "github.com/Additional-Code/orderdesk/internal/repository/order"
	userrepo "github.com/Additional-Code/orderdesk/internal/repository/user"
	authsvc "github.com/Additional-Code/orderdesk/internal/service/auth"
	ordersvc "github.com/Additional-Code/orderdesk/internal/service/order"
	authhttp "github.com/Additional-Code/orderdesk/internal/transport/http/auth"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*entity.User)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*entity.Order)(nil)).Exec(ctx)
	require.NoError(t, err)

	conns := &database.Connections{Writer: db, Reader: db}

	cfg := config.Config{}
	cfg.Auth = config.Auth{
		Secret:     "unit-test-secret",
		Algorithm:  "HS256",
		TokenTTL:   15 * time.Minute,
		BcryptCost: 4,
	}

	accounts := authsvc.NewService(authsvc.Params{
		Repository: userrepo.NewRepository(conns),
		Hasher:     auth.NewHasher(cfg.Auth.BcryptCost),
		Tokens:     auth.NewTokenIssuer(cfg.Auth),
		Config:     cfg,
		Logger:     zap.NewNop(),
	})
	orders := ordersvc.NewService(ordersvc.Params{
		Repository: orderrepo.NewRepository(conns),
		Config:     cfg,
		Logger:     zap.NewNop(),
	})

	e := echo.New()
	authhttp.Register(e, authhttp.NewHandler(accounts))
	Register(e, NewHandler(orders), accounts)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), "body: %s", rec.Body.String())
	return payload
}

func registerAndLogin(t *testing.T, e *echo.Echo, name, email, password string) string {
	t.Helper()

	rec := doJSON(t, e, http.MethodPost, "/auth/register", "",
		fmt.Sprintf(`{"name":%q,"email":%q,"password":%q}`, name, email, password))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	rec = doJSON(t, e, http.MethodPost, "/auth/login", "",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	data := decodeBody(t, rec)["data"].(map[string]any)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "bearer", data["token_type"])
	return token
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	e := newTestServer(t)
	token := registerAndLogin(t, e, "Alice", "alice@example.com", "secret1")

	// Create an order; it starts out pending.
	rec := doJSON(t, e, http.MethodPost, "/orders", token, `{"product_name":"Widget","amount":9.99}`)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	created := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Widget", created["product_name"])
	assert.Equal(t, 9.99, created["amount"])
	assert.Equal(t, "pending", created["status"])
	orderID := int64(created["id"].(float64))

	// The listing shows exactly that order.
	rec = doJSON(t, e, http.MethodGet, "/orders", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), listing["total"])
	first := listing["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, "pending", first["status"])

	// Cancelling a pending order succeeds.
	rec = doJSON(t, e, http.MethodPatch, fmt.Sprintf("/orders/%d/cancel", orderID), token, "")
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	cancelled := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "cancelled", cancelled["status"])

	// Cancelling again is rejected and names the current status.
	rec = doJSON(t, e, http.MethodPatch, fmt.Sprintf("/orders/%d/cancel", orderID), token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeBody(t, rec)["error"].(map[string]any)
	assert.Contains(t, errBody["detail"], "cancelled")
}

func TestOrdersRequireAuthentication(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{name: "list without token", method: http.MethodGet, path: "/orders", token: ""},
		{name: "create without token", method: http.MethodPost, path: "/orders", token: ""},
		{name: "cancel without token", method: http.MethodPatch, path: "/orders/1/cancel", token: ""},
		{name: "garbage token", method: http.MethodGet, path: "/orders", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, tt.method, tt.path, tt.token, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
		})
	}
}

func TestCancelForeignOrderOverHTTP(t *testing.T) {
	e := newTestServer(t)
	aliceToken := registerAndLogin(t, e, "Alice", "alice@example.com", "secret1")
	bobToken := registerAndLogin(t, e, "Bob", "bob@example.com", "secret2")

	rec := doJSON(t, e, http.MethodPost, "/orders", aliceToken, `{"product_name":"Widget","amount":9.99}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := int64(decodeBody(t, rec)["data"].(map[string]any)["id"].(float64))

	rec = doJSON(t, e, http.MethodPatch, fmt.Sprintf("/orders/%d/cancel", orderID), bobToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Bob's listing stays empty; orders never leak across owners.
	rec = doJSON(t, e, http.MethodGet, "/orders", bobToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(0), listing["total"])
}

func TestCancelUnknownOrderOverHTTP(t *testing.T) {
	e := newTestServer(t)
	token := registerAndLogin(t, e, "Alice", "alice@example.com", "secret1")

	rec := doJSON(t, e, http.MethodPatch, "/orders/9999/cancel", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodPatch, "/orders/abc/cancel", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderValidationOverHTTP(t *testing.T) {
	e := newTestServer(t)
	token := registerAndLogin(t, e, "Alice", "alice@example.com", "secret1")

	tests := []struct {
		name string
		body string
	}{
		{name: "zero amount", body: `{"product_name":"Widget","amount":0}`},
		{name: "negative amount", body: `{"product_name":"Widget","amount":-1}`},
		{name: "missing product name", body: `{"amount":9.99}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/orders", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())
		})
	}
}
