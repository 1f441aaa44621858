package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"uncommon.org/progresstrack/internal/entity"
	"uncommon.org/progresstrack/internal/modules/user/dto"
	"uncommon.org/progresstrack/internal/modules/user/repository"
	"uncommon.org/progresstrack/pkg/apperror"
)

const loginAction = "login"

var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperror.ErrUnauthorized)

// SearchTokenIssuer issues scoped search tokens handed out at login.
type SearchTokenIssuer interface {
	GenerateSearchToken() (string, error)
}

type AuthService interface {
	Register(ctx context.Context, input dto.RegisterInput) (*dto.UserResponse, error)
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error)
}

type AuthConfig struct {
	Secret         string
	TokenTTL       time.Duration
	LoginRateLimit time.Duration
}

type authService struct {
	repo        repository.UserRepository
	redisClient *redis.Client
	search      SearchTokenIssuer
	cfg         AuthConfig
	logger      *slog.Logger
}

// NewAuthService builds the auth service. redisClient and search may be nil.
func NewAuthService(repo repository.UserRepository, redisClient *redis.Client, search SearchTokenIssuer, cfg AuthConfig, logger *slog.Logger) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &authService{
		repo:        repo,
		redisClient: redisClient,
		search:      search,
		cfg:         cfg,
		logger:      logger.With("component", "auth"),
	}
}

func (s *authService) Register(ctx context.Context, input dto.RegisterInput) (*dto.UserResponse, error) {
	email := normalizeEmail(input.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entity.User{Email: email, PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	email := normalizeEmail(input.Email)

	allowed, err := CheckAndSetRateLimit(ctx, s.redisClient, email, loginAction, s.cfg.LoginRateLimit)
	if err != nil {
		s.logger.Warn("login rate limit check failed", "error", err)
	} else if !allowed {
		ttl, _ := GetRateLimitTTL(ctx, s.redisClient, email, loginAction)
		return nil, fmt.Errorf("%w: retry in %s", apperror.ErrRateLimitExceeded, ttl.Round(time.Second))
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := ClearRateLimit(ctx, s.redisClient, email, loginAction); err != nil {
		s.logger.Warn("failed to clear login rate limit", "error", err)
	}

	return s.buildAuthResponse(user)
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) buildAuthResponse(user *entity.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	var searchToken string
	if s.search != nil {
		st, err := s.search.GenerateSearchToken()
		if err != nil {
			s.logger.Warn("failed to generate search token", "user_id", user.ID, "error", err)
		} else {
			searchToken = st
		}
	}

	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt,
		User:        dto.NewUserResponse(user),
		SearchToken: searchToken,
	}, nil
}

func (s *authService) generateToken(user *entity.User) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", 0, err
	}

	return signed, expiresAt.Unix(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
