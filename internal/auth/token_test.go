package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, exp, err := tm.GenerateToken("42", "홍길동", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "홍길동", claims.Name)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = NewTokenManager("other", time.Hour).ParseToken(token)
	assert.Error(t, err)

	unverified, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "홍길동", unverified.Name)
}

func testApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if domainErr, ok := err.(*apperrors.DomainError); ok {
				return c.SendStatus(domainErr.HTTPStatus)
			}
			if fe, ok := err.(*fiber.Error); ok {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		return c.SendString(ActorName(c))
	})
	app.Delete("/admin", mw.Handle, RequireRole(RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	app := testApp(tm)
	userToken, _, err := tm.GenerateToken("7", "김철수", RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"missing header", "GET", "/me", "", fiber.StatusUnauthorized},
		{"bad scheme", "GET", "/me", "Basic abc", fiber.StatusUnauthorized},
		{"bad token", "GET", "/me", "Bearer nope", fiber.StatusUnauthorized},
		{"ok", "GET", "/me", "Bearer " + userToken, fiber.StatusOK},
		{"role denied", "DELETE", "/admin", "Bearer " + userToken, fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
