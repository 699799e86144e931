package services

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Token purposes for single-use email action links.
const (
	PurposeSession       = "session"
	PurposeVerifyEmail   = "verify_email"
	PurposePasswordReset = "password_reset"
)

type AuthService struct {
	secretKey []byte
	logger    zerolog.Logger
}

type Claims struct {
	UserID  int    `json:"user_id"`
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func NewAuthService(logger zerolog.Logger) *AuthService {
	secretKey := os.Getenv("JWT_SECRET")
	if secretKey == "" {
		secretKey = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}

	return &AuthService{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *AuthService) GenerateToken(userID int, email string) (string, error) {
	return s.generate(userID, email, PurposeSession, 24*time.Hour)
}

// GenerateActionToken issues a short-lived token embedded in verification and
// password-reset email links.
func (s *AuthService) GenerateActionToken(userID int, email, purpose string) (string, error) {
	return s.generate(userID, email, purpose, time.Hour)
}

func (s *AuthService) generate(userID int, email, purpose string, ttl time.Duration) (string, error) {
	expirationTime := time.Now().Add(ttl)

	claims := &Claims{
		UserID:  userID,
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.Error().Err(err).Str("purpose", purpose).Msg("Error generating token")
		return "", err
	}

	return tokenString, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// ValidateActionToken checks the token and that it was issued for the given
// purpose, so a session token can never stand in for an email action link.
func (s *AuthService) ValidateActionToken(tokenString, purpose string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, errors.New("token purpose mismatch")
	}
	return claims, nil
}
