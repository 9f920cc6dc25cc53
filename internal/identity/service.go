package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials occurs when the email/password pair does not
	// match a registered user.
	ErrInvalidCredentials = errors.New("invalid email or password")

	errInvalidEmail    = errors.New("a valid email address is required")
	errPasswordTooWeak = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// Service manages the identity lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new user with a hashed password.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, errInvalidEmail
	}
	if len(creds.Password) < minPasswordLength {
		return User{}, errPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err == nil {
		user.LastLogin = now
	}
	return user, nil
}
