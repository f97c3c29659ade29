package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func protectedChain(roles ...string) http.Handler {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if len(roles) > 0 {
		handler = Authorize(roles...)(handler)
	}
	return Authenticate([]byte(testSecret))(handler)
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/stages/close", nil)

	protectedChain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejectsBadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "organizer"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/stages/close", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	protectedChain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	signed := signToken(t, jwt.MapClaims{
		"role": "organizer",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/stages/close", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	protectedChain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorizeRoleMismatch(t *testing.T) {
	signed := signToken(t, jwt.MapClaims{"role": "spectator"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/stages/close", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	protectedChain("organizer").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthorizeAllowsMatchingRole(t *testing.T) {
	signed := signToken(t, jwt.MapClaims{"role": "organizer"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/stages/close", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	protectedChain("organizer").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
