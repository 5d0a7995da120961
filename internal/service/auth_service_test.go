package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/dto"
	"github.com/orgstack/org-management-service/internal/repository"
)

const testSecret = "test-secret-key-for-auth-service"

func newAuthFixture(t *testing.T) (AuthService, *repository.MemoryCredentialRepository) {
	t.Helper()
	creds := repository.NewMemoryCredentialRepository()
	svc := NewAuthService(creds, &AuthServiceConfig{Secret: testSecret, TokenTTL: time.Hour})
	return svc, creds
}

func seedAdmin(t *testing.T, creds *repository.MemoryCredentialRepository, email, password, tenantName string) *domain.Credential {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	cred := &domain.Credential{
		ID:           "admin-1",
		Email:        email,
		PasswordHash: hash,
		TenantName:   tenantName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := creds.Create(context.Background(), cred); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return cred
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, creds := newAuthFixture(t)
	seedAdmin(t, creds, "admin@acme.io", "s3cret-pass", "Acme")

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "admin@acme.io",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want bearer", resp.TokenType)
	}

	claims, err := svc.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.AdminID != "admin-1" || claims.TenantName != "Acme" {
		t.Errorf("claims = %+v", claims)
	}
	if time.Until(claims.ExpiresAt) <= 0 {
		t.Error("token already expired")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, creds := newAuthFixture(t)
	seedAdmin(t, creds, "admin@acme.io", "s3cret-pass", "Acme")

	_, wrongPassword := svcLogin(svc, "admin@acme.io", "wrong-pass")
	_, unknownEmail := svcLogin(svc, "nobody@acme.io", "s3cret-pass")

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", wrongPassword)
	}
	if !errors.Is(unknownEmail, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Errorf("error shapes differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func svcLogin(svc AuthService, email, password string) (*dto.LoginResponse, error) {
	return svc.Login(context.Background(), &dto.LoginRequest{Email: email, Password: password})
}

func TestValidateTokenExpired(t *testing.T) {
	svc, _ := newAuthFixture(t)

	token, err := svc.IssueToken("admin-1", "Acme", -time.Second)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	_, err = svc.ValidateToken(token)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("ValidateToken(expired) error = %v, want ErrUnauthenticated", err)
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("expired token should carry jwt.ErrTokenExpired internally, got %v", err)
	}
}

func TestValidateTokenTampered(t *testing.T) {
	svc, _ := newAuthFixture(t)

	token, err := svc.IssueToken("admin-1", "Acme", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	// Flip the signature: same 401-class failure as expiry, but for a
	// different internal reason.
	parts := strings.Split(token, ".")
	parts[2] = "AAAA" + parts[2][4:]
	tampered := strings.Join(parts, ".")

	_, err = svc.ValidateToken(tampered)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("ValidateToken(tampered) error = %v, want ErrUnauthenticated", err)
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		t.Error("tampered token misreported as expired")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(repository.NewMemoryCredentialRepository(), &AuthServiceConfig{Secret: "a-different-secret"})

	token, err := other.IssueToken("admin-1", "Acme", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("ValidateToken(foreign secret) error = %v, want ErrUnauthenticated", err)
	}
}

func TestAuthorize(t *testing.T) {
	svc, _ := newAuthFixture(t)
	claims := &domain.TokenClaims{AdminID: "admin-1", TenantName: "Acme", ExpiresAt: time.Now().Add(time.Hour)}

	tests := []struct {
		name    string
		target  string
		wantErr error
	}{
		{"own tenant", "Acme", nil},
		{"case variant of own tenant", "ACME", nil},
		{"other tenant", "Globex", domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(claims, tt.target)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Authorize(%q) error = %v, want nil", tt.target, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Authorize(%q) error = %v, want %v", tt.target, err, tt.wantErr)
			}
		})
	}

	if err := svc.Authorize(nil, "Acme"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Authorize(nil claims) error = %v, want ErrUnauthenticated", err)
	}
}
