package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIssuer struct {
	err error
}

func (s stubIssuer) Issue(subjectID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-for-" + subjectID, nil
}

func newTestAuthService() (*AuthService, *memory.UserRepository) {
	users := memory.NewUserRepository()
	return NewAuthService(users, stubIssuer{}).WithBcryptCost(4), users
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		userName string
		wantErr  error
	}{
		{name: "valid", email: "Shopper@Example.com", password: "password123", userName: "Shopper"},
		{name: "bad_email", email: "not-an-email", password: "password123", userName: "A", wantErr: domain.ErrInvalidInput},
		{name: "short_password", email: "a@example.com", password: "short", userName: "A", wantErr: domain.ErrInvalidInput},
		{name: "missing_name", email: "a@example.com", password: "password123", userName: "  ", wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestAuthService()
			res, err := svc.Register(ctx, tt.email, tt.password, tt.userName)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "shopper@example.com", res.User.Email)
			assert.Equal(t, "token-for-"+res.User.ID, res.Token)
		})
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup@example.com", "password123", "First")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "DUP@example.com", "password123", "Second")
	assert.ErrorIs(t, err, domain.ErrEmailExists)
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "login@example.com", "password123", "Login")
	require.NoError(t, err)

	t.Run("correct_password", func(t *testing.T) {
		res, err := svc.Login(ctx, "Login@Example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, res.User.ID)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, err := svc.Login(ctx, "login@example.com", "wrong-password")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "password123")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("profile", func(t *testing.T) {
		p, err := svc.Profile(ctx, registered.User.ID)
		require.NoError(t, err)
		assert.Equal(t, "Login", p.Name)
	})
}

func TestAuthService_IssueFailure(t *testing.T) {
	svc := NewAuthService(memory.NewUserRepository(), stubIssuer{err: errors.New("signer down")}).WithBcryptCost(4)

	_, err := svc.Register(context.Background(), "a@example.com", "password123", "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to issue token")
}
