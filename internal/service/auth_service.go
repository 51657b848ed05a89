package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dept-service/internal/auth"
	"github.com/spec-kit/dept-service/internal/config"
	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/repository"
	apperrors "github.com/spec-kit/dept-service/pkg/util"
)

// AuthService coordinates operator login and the bootstrap account.
type AuthService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	bootstrap  config.BootstrapConfig
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	OperatorRepo repository.OperatorRepository
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		operators:  deps.OperatorRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		bootstrap:  cfg.Bootstrap,
		logger:     logger,
	}
}

// TokenManager exposes the token manager shared with the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login authenticates an operator and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Operator, string, time.Time, error) {
	operator, err := s.operators.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(operator.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !operator.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("operator disabled")
	}

	token, exp, err := s.tokenMgr.GenerateToken(operator.ID, operator.Username, operator.Authorities)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return operator, token, exp, nil
}

// EnsureBootstrapOperator creates the first operator with every authority when the store
// is empty and bootstrap credentials are configured. It returns nil when nothing was created.
func (s *AuthService) EnsureBootstrapOperator(ctx context.Context) (*domain.Operator, error) {
	if s.bootstrap.AdminPassword == "" || s.bootstrap.AdminUsername == "" {
		return nil, nil
	}
	total, err := s.operators.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		return nil, nil
	}

	hash, err := auth.HashPassword(s.bootstrap.AdminPassword, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	operator := &domain.Operator{
		Username:     s.bootstrap.AdminUsername,
		DisplayName:  s.bootstrap.AdminUsername,
		PasswordHash: hash,
		Authorities:  []string{domain.AuthorityAll},
		Active:       true,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Info("bootstrap operator already created elsewhere", zap.String("username", operator.Username))
			return nil, nil
		}
		return nil, err
	}
	s.logger.Info("bootstrap operator created", zap.String("username", operator.Username), zap.Int64("operator_id", operator.ID))
	return operator, nil
}
