package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/apperr"
	"github.com/stemsi/studyplan-backend/internal/config"
	"github.com/stemsi/studyplan-backend/internal/database"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/repository"
	"github.com/stemsi/studyplan-backend/internal/response"
	"golang.org/x/crypto/bcrypt"
)

// TokenTypeOwner marks tokens issued to exam owners.
const TokenTypeOwner = "owner"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string    `json:"token_type"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
}

// AuthService handles owner login and JWT issuance.
type AuthService struct {
	cfg   *config.Config
	users UserStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, users UserStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:   cfg,
		users: users,
		now:   time.Now,
		log:   log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// Register creates an owner account.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*model.User, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}
	u := &model.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err, repository.UserConstraintEmail) {
			return nil, fail(apperr.KindConflict, response.ErrEmailTaken)
		}
		return nil, apperr.Internal(err, "create user")
	}
	return u, nil
}

// Login checks credentials and returns a signed token.
// Unknown emails and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fail(apperr.KindUnauthorized, response.ErrInvalidCredentials)
		}
		return nil, apperr.Internal(err, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fail(apperr.KindUnauthorized, response.ErrInvalidCredentials)
	}

	token, err := s.GenerateToken(u)
	if err != nil {
		return nil, apperr.Internal(err, "issue token")
	}

	s.log.Info().Str("user_id", u.ID.String()).Msg("Owner logged in")
	return &model.LoginResponse{Token: token, User: *u}, nil
}

// Me returns the account behind a token.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fail(apperr.KindUnauthorized, response.ErrTokenInvalid)
		}
		return nil, apperr.Internal(err, "load user")
	}
	return u, nil
}

// GenerateToken creates an owner JWT.
func (s *AuthService) GenerateToken(u *model.User) (string, error) {
	now := s.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeOwner,
		UserID:    u.ID,
		Email:     u.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != TokenTypeOwner || claims.UserID == uuid.Nil {
		return nil, errors.New("not an owner token")
	}

	return claims, nil
}
