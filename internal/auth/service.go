package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/identity"
)

// ErrInvalidToken occurs when a token fails signature, expiry, or version
// checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access and refresh tokens.
type Claims struct {
	TokenVersion int `json:"ver"`
	jwt.RegisteredClaims
}

// Service issues and verifies JWT token pairs.
type Service struct {
	cfg    config.Config
	idRepo identity.Repository
}

// NewService builds the auth service.
func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo}
}

// TokenPair bundles the access and refresh tokens returned on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an already-authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, err := s.sign(user, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Refresh verifies the refresh token and returns a new access token if the
// token version is still current.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := s.parse(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, ErrInvalidToken
	}

	user, err := s.idRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return "", 0, ErrInvalidToken
	}
	if user.TokenVersion != claims.TokenVersion {
		return "", 0, ErrInvalidToken
	}

	access, err := s.sign(user, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout bumps the user's token version so previously issued tokens become
// invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}

// VerifyAccess parses and validates an access token, returning its claims.
func (s *Service) VerifyAccess(token string) (Claims, error) {
	return s.parse(token, s.cfg.JWTSecret)
}

func (s *Service) sign(user identity.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Service) parse(token, secret string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
