package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"uncommon.org/progresstrack/internal/entity"
	"uncommon.org/progresstrack/internal/modules/user/dto"
	"uncommon.org/progresstrack/internal/modules/user/repository"
	"uncommon.org/progresstrack/pkg/apperror"
)

const testSecret = "test-secret"

type stubSearch struct {
	token string
	err   error
}

func (s stubSearch) GenerateSearchToken() (string, error) { return s.token, s.err }

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.User{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return repository.NewUserRepository(db)
}

func newTestService(t *testing.T, rdb *redis.Client, search SearchTokenIssuer) AuthService {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(newTestRepo(t), rdb, search, AuthConfig{
		Secret:         testSecret,
		TokenTTL:       time.Hour,
		LoginRateLimit: 5 * time.Second,
	}, quiet)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t, nil, stubSearch{token: "search-token"})
	ctx := context.Background()

	user, err := svc.Register(ctx, dto.RegisterInput{Email: " Mentor@Example.com ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "mentor@example.com", user.Email)

	res, err := svc.Login(ctx, dto.LoginInput{Email: "MENTOR@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, "search-token", res.SearchToken)
	assert.Equal(t, user.ID, res.User.ID)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(res.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, res.ExpiresIn, claims.ExpiresAt.Unix())

	profile, err := svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, profile.Email)
}

func TestRegister_Duplicate(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, dto.RegisterInput{Email: "A@example.com", Password: "password2"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, dto.LoginInput{Email: "a@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(ctx, dto.LoginInput{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLogin_SearchTokenFailureIsNotFatal(t *testing.T) {
	svc := newTestService(t, nil, stubSearch{err: fmt.Errorf("meili down")})
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, dto.LoginInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Empty(t, res.SearchToken)
}

func TestLogin_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := newTestService(t, rdb, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, dto.LoginInput{Email: "a@example.com", Password: "bad-password"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(ctx, dto.LoginInput{Email: "a@example.com", Password: "password1"})
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	mr.FastForward(6 * time.Second)

	_, err = svc.Login(ctx, dto.LoginInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	// a successful login releases the lock
	_, err = svc.Login(ctx, dto.LoginInput{Email: "a@example.com", Password: "password1"})
	assert.NoError(t, err)
}

func TestCheckAndSetRateLimit_NilClient(t *testing.T) {
	ok, err := CheckAndSetRateLimit(context.Background(), nil, "a", "login", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
