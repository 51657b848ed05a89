package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dept-service/internal/auth"
	"github.com/spec-kit/dept-service/internal/config"
	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/repository/memrepo"
)

func testConfig() config.Config {
	return config.Config{
		Auth:      config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		Bootstrap: config.BootstrapConfig{AdminUsername: "root", AdminPassword: "changeme"},
	}
}

func TestEnsureBootstrapOperator_OnlyOnEmptyStore(t *testing.T) {
	ops := memrepo.NewOperators()
	svc := NewAuthService(testConfig(), AuthDependencies{OperatorRepo: ops})
	ctx := context.Background()

	created, err := svc.EnsureBootstrapOperator(ctx)
	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, []string{domain.AuthorityAll}, created.Authorities)

	again, err := svc.EnsureBootstrapOperator(ctx)
	require.NoError(t, err)
	require.Nil(t, again)

	total, err := ops.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

// staleCountOperators reports an empty store so two instances both try to bootstrap.
type staleCountOperators struct {
	*memrepo.Operators
}

func (staleCountOperators) Count(context.Context) (int64, error) { return 0, nil }

func TestEnsureBootstrapOperator_ConcurrentCreateIsNotAnError(t *testing.T) {
	ops := staleCountOperators{Operators: memrepo.NewOperators()}
	ctx := context.Background()

	first, err := NewAuthService(testConfig(), AuthDependencies{OperatorRepo: ops}).EnsureBootstrapOperator(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := NewAuthService(testConfig(), AuthDependencies{OperatorRepo: ops}).EnsureBootstrapOperator(ctx)
	require.NoError(t, err)
	require.Nil(t, second)

	total, err := ops.Operators.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestEnsureBootstrapOperator_DisabledWithoutPassword(t *testing.T) {
	cfg := testConfig()
	cfg.Bootstrap.AdminPassword = ""
	svc := NewAuthService(cfg, AuthDependencies{OperatorRepo: memrepo.NewOperators()})

	created, err := svc.EnsureBootstrapOperator(context.Background())
	require.NoError(t, err)
	require.Nil(t, created)
}

func TestLogin(t *testing.T) {
	ops := memrepo.NewOperators()
	svc := NewAuthService(testConfig(), AuthDependencies{OperatorRepo: ops})
	ctx := context.Background()

	_, err := svc.EnsureBootstrapOperator(ctx)
	require.NoError(t, err)

	operator, token, _, err := svc.Login(ctx, "root", "changeme")
	require.NoError(t, err)
	require.Equal(t, "root", operator.Username)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, operator.ID, claims.OperatorID)
	require.Equal(t, []string{domain.AuthorityAll}, claims.Authorities)

	_, _, _, err = svc.Login(ctx, "root", "nope")
	requireCode(t, err, "UNAUTHORIZED")
	_, _, _, err = svc.Login(ctx, "nobody", "changeme")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestLogin_InactiveOperator(t *testing.T) {
	ops := memrepo.NewOperators()
	svc := NewAuthService(testConfig(), AuthDependencies{OperatorRepo: ops})
	ctx := context.Background()

	hash, err := auth.HashPassword("pw", 4)
	require.NoError(t, err)
	require.NoError(t, ops.Create(ctx, &domain.Operator{Username: "idle", PasswordHash: hash, Active: false}))

	_, _, _, err = svc.Login(ctx, "idle", "pw")
	requireCode(t, err, "UNAUTHORIZED")
}
