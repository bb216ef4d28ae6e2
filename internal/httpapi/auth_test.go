package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWTAuth_GenerateValidateRoundTrip(t *testing.T) {
	a := NewJWTAuth("test-secret", time.Hour)

	token, err := a.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	subject, err := a.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if subject != "user-1" {
		t.Errorf("subject = %q, want %q", subject, "user-1")
	}
}

func TestJWTAuth_ValidateRejectsTamperedToken(t *testing.T) {
	a := NewJWTAuth("test-secret", time.Hour)
	token, _ := a.Generate("user-1")

	if _, err := a.Validate(token + "x"); err != ErrInvalidToken {
		t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTAuth_DisabledWithEmptySecret(t *testing.T) {
	a := NewJWTAuth("", time.Hour)
	if a.Enabled() {
		t.Fatal("Enabled() = true, want false for an empty secret")
	}
	if _, err := a.Generate("user-1"); err != ErrAuthDisabled {
		t.Errorf("Generate() error = %v, want ErrAuthDisabled", err)
	}
}

func TestMiddleware_RejectsMissingBearerToken(t *testing.T) {
	a := NewJWTAuth("test-secret", time.Hour)
	handler := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/run", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMiddleware_AcceptsValidBearerTokenAndSetsSubject(t *testing.T) {
	a := NewJWTAuth("test-secret", time.Hour)
	token, _ := a.Generate("user-1")

	var gotSubject string
	handler := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotSubject != "user-1" {
		t.Errorf("subject = %q, want %q", gotSubject, "user-1")
	}
}

func TestMiddleware_PassesThroughWhenAuthDisabled(t *testing.T) {
	a := NewJWTAuth("", time.Hour)
	handler := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/run", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
