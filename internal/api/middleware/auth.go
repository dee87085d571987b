package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiranshivaraju/ednaflow/internal/api/response"
)

// Auth verifies Supabase-issued access tokens (HS256, signed with the
// project's JWT secret) and exposes the token subject as the user id.
type Auth struct {
	secret []byte
}

// NewAuth creates a new Auth middleware that accepts HS256 tokens signed
// with secret. An empty secret disables verification.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Enabled reports whether tokens are verified.
func (a *Auth) Enabled() bool {
	return len(a.secret) > 0
}

// Authenticate rejects requests without a valid Bearer token. It is a no-op
// when verification is disabled.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		raw := extractBearerToken(r)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		subject, err := a.verify(raw)
		if err != nil {
			msg := "Invalid access token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Access token expired"
			}
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", msg, nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), subject)))
	})
}

func (a *Auth) verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// ExtractBearerToken returns the token from an "Authorization: Bearer" header.
func ExtractBearerToken(r *http.Request) string {
	return extractBearerToken(r)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
