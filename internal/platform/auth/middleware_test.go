package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

const testStaffID = "0d3b8a4e-3b4f-4f1e-9a4b-6f5a2c1d7e90"

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testStaffID,
			Issuer:    "frontdesk-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleClinician},
	}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (context.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got context.Context
	h := JWTMiddleware(cfg)(func(c echo.Context) error {
		got = c.Request().Context()
		return c.String(http.StatusOK, "ok")
	})
	return got, h(c)
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok := createTestToken(t, validClaims(), testSigningKey)
	ctx, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "frontdesk-test"}, "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(ctx); got != testStaffID {
		t.Errorf("expected user id %s, got %s", testStaffID, got)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != RoleClinician {
		t.Errorf("unexpected roles %v", roles)
	}
	staffID, ok := StaffIDFromContext(ctx)
	if !ok || staffID.String() != testStaffID {
		t.Errorf("expected staff id %s, got %s (%v)", testStaffID, staffID, ok)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name   string
		claims Claims
		key    []byte
	}{
		{"expired", expired, testSigningKey},
		{"no expiry", noExpiry, testSigningKey},
		{"wrong issuer", wrongIssuer, testSigningKey},
		{"no subject", noSubject, testSigningKey},
		{"wrong key", validClaims(), []byte("another-key")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := createTestToken(t, tt.claims, tt.key)
			_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "frontdesk-test"}, "Bearer "+tok)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := DevAuthMiddleware(testStaffID)(func(c echo.Context) error {
		ctx := c.Request().Context()
		if UserIDFromContext(ctx) != testStaffID {
			t.Errorf("expected dev staff id, got %q", UserIDFromContext(ctx))
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != RoleAdmin {
			t.Errorf("expected admin role, got %v", roles)
		}
		return c.String(http.StatusOK, "ok")
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStaffIDFromContext_NotUUID(t *testing.T) {
	ctx := WithUser(context.Background(), "dev-user", nil)
	if _, ok := StaffIDFromContext(ctx); ok {
		t.Error("expected non-uuid user id to be rejected")
	}
}
