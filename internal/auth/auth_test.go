package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/auth"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedHandler(v *auth.Verifier) (http.Handler, *auth.Principal) {
	var seen auth.Principal
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			seen = p
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &seen
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	v, err := auth.NewVerifier(testSecret, false)
	require.NoError(t, err)
	handler, seen := protectedHandler(v)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "ci-bot",
		"scope": "invoke pipelines",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/agents/config-validation/invoke", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "ci-bot", seen.Subject)
	assert.Equal(t, []string{"invoke", "pipelines"}, seen.Scopes)
}

func TestMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	v, err := auth.NewVerifier(testSecret, false)
	require.NoError(t, err)
	handler, _ := protectedHandler(v)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	wrongKey := signToken(t, "some-other-secret", jwt.MapClaims{"sub": "x"})
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+wrongKey)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "x",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDisabledVerifierAdmitsEverything(t *testing.T) {
	v, err := auth.NewVerifier("", true)
	require.NoError(t, err)
	handler, _ := protectedHandler(v)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := auth.NewVerifier("", false)
	assert.Error(t, err)
}
