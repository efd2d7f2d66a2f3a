// package auth verifies bearer tokens on the service's write surface.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const principalKey contextKey = "auth.principal"

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	Subject string
	Scopes  []string
}

// Verifier validates HMAC-signed bearer tokens. A disabled verifier
// admits every request; that mode is for local development only.
type Verifier struct {
	secret   []byte
	disabled bool
}

func NewVerifier(secret string, disabled bool) (*Verifier, error) {
	if !disabled && secret == "" {
		return nil, fmt.Errorf("auth: secret is required unless verification is disabled")
	}
	return &Verifier{secret: []byte(secret), disabled: disabled}, nil
}

// VerifyToken parses and validates one compact JWT.
func (v *Verifier) VerifyToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return Principal{}, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("verify token: unexpected claims type %T", token.Claims)
	}
	principal := Principal{}
	if sub, err := claims.GetSubject(); err == nil {
		principal.Subject = sub
	}
	if raw, ok := claims["scope"].(string); ok {
		principal.Scopes = strings.Fields(raw)
	}
	return principal, nil
}

// Middleware rejects requests without a valid Authorization bearer token
// and stashes the principal in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.disabled {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w, "bearer token required")
			return
		}
		principal, err := v.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  "COPILOT_AGENTS_AUTH",
	})
}
