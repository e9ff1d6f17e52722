package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mockJWKSClient returns canned claims or an error without touching JWKS.
type mockJWKSClient struct {
	claims *Claims
	err    error
}

var _ JWKSClientInterface = (*mockJWKSClient)(nil)

func (m *mockJWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	return m.claims, m.err
}

func (m *mockJWKSClient) Close() {}

func validClaims() *Claims {
	return &Claims{
		TenantID:  uuid.New().String(),
		ProjectID: uuid.New().String(),
	}
}

func TestAuthService_ValidateRequest_Success(t *testing.T) {
	claims := validClaims()
	svc := NewAuthService(&mockJWKSClient{claims: claims}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")

	got, token, err := svc.ValidateRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != claims {
		t.Error("expected claims from JWKS client")
	}
	if token != "some-token" {
		t.Errorf("expected raw token, got %q", token)
	}
}

func TestAuthService_ValidateRequest_MissingHeader(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, _, err := svc.ValidateRequest(req); !errors.Is(err, ErrMissingAuthorization) {
		t.Errorf("expected ErrMissingAuthorization, got %v", err)
	}
}

func TestAuthService_ValidateRequest_BadFormat(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	if _, _, err := svc.ValidateRequest(req); !errors.Is(err, ErrInvalidAuthFormat) {
		t.Errorf("expected ErrInvalidAuthFormat, got %v", err)
	}
}

func TestAuthService_ValidateRequest_TokenRejected(t *testing.T) {
	tokenErr := errors.New("signature invalid")
	svc := NewAuthService(&mockJWKSClient{err: tokenErr}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")

	if _, _, err := svc.ValidateRequest(req); !errors.Is(err, tokenErr) {
		t.Errorf("expected token error, got %v", err)
	}
}

func TestAuthService_RequireScope(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{}, zap.NewNop())

	if err := svc.RequireScope(validClaims()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := svc.RequireScope(&Claims{ProjectID: uuid.New().String()}); !errors.Is(err, ErrMissingTenantID) {
		t.Errorf("expected ErrMissingTenantID, got %v", err)
	}

	if err := svc.RequireScope(&Claims{TenantID: uuid.New().String()}); !errors.Is(err, ErrMissingProjectID) {
		t.Errorf("expected ErrMissingProjectID, got %v", err)
	}
}

func TestAuthService_ValidateProjectIDMatch(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{}, zap.NewNop())
	claims := validClaims()

	if err := svc.ValidateProjectIDMatch(claims, claims.ProjectID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Empty URL project ID skips the check
	if err := svc.ValidateProjectIDMatch(claims, ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := svc.ValidateProjectIDMatch(claims, uuid.New().String()); !errors.Is(err, ErrProjectIDMismatch) {
		t.Errorf("expected ErrProjectIDMismatch, got %v", err)
	}
}
