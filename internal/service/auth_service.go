package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/makkenzo/key-service-api/internal/config"
	"github.com/makkenzo/key-service-api/internal/ierr"
	"go.uber.org/zap"
)

const (
	RoleAdmin          = "admin"
	StaticAdminSubject = "static-admin-token"
)

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type adminTokenMatcher interface {
	Match(token string) bool
}

// AuthService accepts two kinds of admin bearer: one of the configured static
// admin tokens, or an HS256 JWT previously issued by IssueToken.
type AuthService struct {
	tokens adminTokenMatcher
	secret []byte
	ttl    time.Duration
	issuer string
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(tokens adminTokenMatcher, cfg *config.AuthConfig, logger *zap.Logger) *AuthService {
	ttl := cfg.JWTTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthService{
		tokens: tokens,
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		issuer: cfg.JWTIssuer,
		logger: logger.Named("AuthService"),
		now:    time.Now,
	}
}

func (s *AuthService) jwtEnabled() bool {
	return len(s.secret) > 0
}

// Authenticate tries the bearer as a JWT first so issued sessions skip the
// bcrypt comparison. Only bearers that are not JWTs are matched against the
// static admin tokens.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*AdminClaims, error) {
	if s.jwtEnabled() {
		claims, err := s.ValidateToken(ctx, rawToken)
		if err == nil {
			return claims, nil
		}
		if !errors.Is(err, ierr.ErrInvalidCredentials) {
			return nil, err
		}
	}

	if s.tokens.Match(rawToken) {
		s.logger.Debug("Static admin token accepted")
		return &AdminClaims{
			Role:             RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{Subject: StaticAdminSubject},
		}, nil
	}
	return nil, ierr.ErrInvalidCredentials
}

func (s *AuthService) IssueToken(ctx context.Context, adminToken string) (string, time.Time, error) {
	if !s.jwtEnabled() {
		return "", time.Time{}, fmt.Errorf("%w: admin token exchange is disabled", ierr.ErrForbidden)
	}
	if !s.tokens.Match(adminToken) {
		s.logger.Info("Rejected admin token exchange")
		return "", time.Time{}, ierr.ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   StaticAdminSubject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.logger.Error("Failed to sign admin JWT", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("%w: signing admin token: %v", ierr.ErrInternalServer, err)
	}

	s.logger.Info("Issued admin JWT", zap.String("jti", claims.ID), zap.Time("expires_at", expiresAt))
	return signed, expiresAt, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, rawToken string) (*AdminClaims, error) {
	var claims AdminClaims
	token, err := jwt.ParseWithClaims(rawToken, &claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ierr.ErrInvalidCredentials
		}
		s.logger.Warn("Failed to verify admin JWT", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Role != RoleAdmin {
		return nil, ierr.ErrTokenInvalidClaims
	}

	s.logger.Debug("Admin JWT validated", zap.String("subject", claims.Subject), zap.String("jti", claims.ID))
	return &claims, nil
}
