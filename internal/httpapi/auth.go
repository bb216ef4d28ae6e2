// Package httpapi exposes the agent runtime over HTTP: a bearer-token
// protected run endpoint, a health check, and a Prometheus metrics
// endpoint.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthDisabled is returned by JWTAuth.Generate/Validate when no
// secret was configured, distinguishing "auth is off" from "token is
// invalid".
var ErrAuthDisabled = errors.New("httpapi: auth disabled, no secret configured")

// ErrInvalidToken is returned when a bearer token fails signature or
// claims validation.
var ErrInvalidToken = errors.New("httpapi: invalid token")

// JWTAuth signs and verifies HS256 bearer tokens for the serve command.
// A zero-value JWTAuth (empty secret) disables auth entirely, matching
// the teacher's "no secret configured" escape hatch for local dev.
type JWTAuth struct {
	secret []byte
	expiry time.Duration
}

// NewJWTAuth builds a JWTAuth. An empty secret disables auth: Middleware
// then lets every request through unauthenticated.
func NewJWTAuth(secret string, expiry time.Duration) *JWTAuth {
	return &JWTAuth{secret: []byte(secret), expiry: expiry}
}

// Enabled reports whether a secret was configured.
func (a *JWTAuth) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

type claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Generate issues a signed token for subject.
func (a *JWTAuth) Generate(subject string) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}
	c := claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.expiry)),
		},
	}
	if a.expiry <= 0 {
		c.ExpiresAt = nil
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(a.secret)
}

// Validate parses and validates a bearer token, returning its subject.
func (a *JWTAuth) Validate(token string) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || strings.TrimSpace(c.Subject) == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

type contextKey string

const subjectContextKey contextKey = "httpapi_subject"

// WithSubject attaches an authenticated subject to ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}

// SubjectFromContext returns the subject Middleware authenticated, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok
}

// Middleware enforces bearer-token authentication. If auth is disabled
// (no secret configured) every request passes through unauthenticated.
func Middleware(auth *JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(header[len("bearer "):])
			subject, err := auth.Validate(token)
			if err != nil {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}
