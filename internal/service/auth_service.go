package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/dto"
	"github.com/orgstack/org-management-service/internal/partition"
	"github.com/orgstack/org-management-service/internal/repository"
)

// DefaultTokenTTL is the token lifetime used when the config does not
// override it.
const DefaultTokenTTL = 60 * time.Minute

// AuthService issues and validates bearer tokens binding an admin to an
// organization name, and authenticates admin logins.
type AuthService interface {
	// Login verifies the admin's credentials and returns a signed access
	// token. Unknown email and wrong password return the identical
	// domain.ErrInvalidCredentials, leaking nothing about which failed.
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	// IssueToken signs a token carrying {admin_id, organization_name, exp}.
	IssueToken(adminID, tenantName string, ttl time.Duration) (string, error)
	// ValidateToken checks the signature and expiry only; it does not
	// re-verify that the tenant still exists or that the admin still owns
	// it. Returns domain.ErrUnauthenticated on any failure.
	ValidateToken(token string) (*domain.TokenClaims, error)
	// Authorize allows the claim only for its own organization, compared
	// under the same normalization as the directory.
	Authorize(claims *domain.TokenClaims, targetTenantName string) error
}

// accessClaims is the JWT payload. Field names are part of the wire
// contract with API clients.
type accessClaims struct {
	AdminID          string `json:"admin_id"`
	OrganizationName string `json:"organization_name"`
	jwt.RegisteredClaims
}

// AuthServiceConfig holds signing configuration
type AuthServiceConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type authService struct {
	creds  repository.CredentialRepository
	secret []byte
	ttl    time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(creds repository.CredentialRepository, cfg *AuthServiceConfig) AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &authService{
		creds:  creds,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
	}
}

// Login verifies the admin's credentials and returns a signed access token
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	cred, err := s.creds.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if cred == nil || !VerifyPassword(req.Password, cred.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.IssueToken(cred.ID, cred.TenantName, s.ttl)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// IssueToken signs a token carrying {admin_id, organization_name, exp}
func (s *authService) IssueToken(adminID, tenantName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		AdminID:          adminID,
		OrganizationName: tenantName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken checks the signature and expiry only
func (s *authService) ValidateToken(token string) (*domain.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		// Expired and tampered tokens surface the same way to callers;
		// the distinction stays in the wrapped cause for logs.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid || claims.AdminID == "" || claims.OrganizationName == "" {
		return nil, domain.ErrUnauthenticated
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	return &domain.TokenClaims{
		AdminID:    claims.AdminID,
		TenantName: claims.OrganizationName,
		ExpiresAt:  expiry,
	}, nil
}

// Authorize allows the claim only for its own organization
func (s *authService) Authorize(claims *domain.TokenClaims, targetTenantName string) error {
	if claims == nil {
		return domain.ErrUnauthenticated
	}
	if partition.NormalizeName(claims.TenantName) != partition.NormalizeName(targetTenantName) {
		return fmt.Errorf("admin of %q targeting %q: %w", claims.TenantName, targetTenantName, domain.ErrForbidden)
	}
	return nil
}
