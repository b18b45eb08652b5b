package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"storefront/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const bcryptCost = 12

// TokenIssuer issues bearer tokens for a subject.
type TokenIssuer interface {
	Issue(subjectID string) (string, error)
}

// AuthResult is returned by a successful login or registration.
type AuthResult struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

type AuthService struct {
	userRepo domain.UserRepository
	tokens   TokenIssuer
	cost     int
}

func NewAuthService(userRepo domain.UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		cost:     bcryptCost,
	}
}

// WithBcryptCost lowers the hashing cost, for tests.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.cost = cost
	return s
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if !emailRegex.MatchString(email) || len(email) > 255 {
		return nil, fmt.Errorf("%w: email address is not valid", domain.ErrInvalidInput)
	}
	if len(password) < 8 || len(password) > 100 {
		return nil, fmt.Errorf("%w: password must be 8 to 100 characters", domain.ErrInvalidInput)
	}
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: name must be 1 to 100 characters", domain.ErrInvalidInput)
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(password),
	); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Profile returns the public profile of the subject a token resolved to.
func (s *AuthService) Profile(ctx context.Context, subjectID string) (domain.Profile, error) {
	user, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user.Profile()}, nil
}
