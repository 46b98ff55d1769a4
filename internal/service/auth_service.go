package service

import (
	"context"
	"errors"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService exchanges the shared access PIN for a session token. The token
// is opaque to the rest of the core: every boundary call just carries it.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
}

type authService struct {
	cfg *config.Config
}

func NewAuthService(cfg *config.Config) AuthService {
	return &authService{cfg: cfg}
}

func (s *authService) Login(_ context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if s.cfg.AccessPINBcrypt == "" {
		return nil, errors.New("access PIN not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AccessPINBcrypt), []byte(req.PIN)); err != nil {
		return nil, errors.New("invalid PIN")
	}

	ttl := time.Duration(s.cfg.SessionHours) * time.Hour
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   "operator",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}
