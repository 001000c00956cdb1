package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func testService(t *testing.T, password string) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	return NewService(Config{
		PasswordHash: string(hash),
		JWTSecret:    "test-secret",
		SessionHours: 1,
	}, zap.NewNop())
}

func TestService_LoginAndVerify(t *testing.T) {
	svc := testService(t, "hunter2")

	token, err := svc.Login("hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	subject, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if subject != "admin" {
		t.Errorf("expected subject admin, got %q", subject)
	}
}

func TestService_WrongPassword(t *testing.T) {
	svc := testService(t, "hunter2")

	_, err := svc.Login("letmein")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_VerifyRejectsGarbage(t *testing.T) {
	svc := testService(t, "hunter2")

	if _, err := svc.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestService_VerifyRejectsForeignSecret(t *testing.T) {
	svc := testService(t, "hunter2")
	other := testService(t, "hunter2")
	other.config.JWTSecret = "different-secret"

	token, err := other.Login("hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestService_DisabledWithoutHash(t *testing.T) {
	svc := NewService(Config{}, zap.NewNop())

	if svc.Enabled() {
		t.Fatal("service without hash should be disabled")
	}
	if _, err := svc.Login("anything"); err == nil {
		t.Fatal("login must fail when auth is not configured")
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_PassesWhenDisabled(t *testing.T) {
	svc := NewService(Config{}, zap.NewNop())

	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/contacts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_RejectsMissingToken(t *testing.T) {
	svc := testService(t, "hunter2")

	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/contacts", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_RejectsInvalidToken(t *testing.T) {
	svc := testService(t, "hunter2")

	req := httptest.NewRequest(http.MethodGet, "/v1/contacts", nil)
	req.Header.Set("Authorization", "Bearer bogus")

	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_AcceptsValidToken(t *testing.T) {
	svc := testService(t, "hunter2")

	token, err := svc.Login("hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
