package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"uncommon.org/progresstrack/internal/entity"
	studentRepo "uncommon.org/progresstrack/internal/modules/student/repository"
	userRepo "uncommon.org/progresstrack/internal/modules/user/repository"
	"uncommon.org/progresstrack/pkg/apperror"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Student{},
		&entity.User{},
	)
}

// EnsureIndexes is the mongo counterpart of Migrate.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := studentRepo.EnsureStudentIndexes(ctx, db); err != nil {
		return err
	}
	return userRepo.EnsureUserIndexes(ctx, db)
}

// SeedMentor creates the given mentor account unless one with that email
// already exists.
func SeedMentor(ctx context.Context, users userRepo.UserRepository, email, password string, logger *slog.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	_, err := users.FindByEmail(ctx, email)
	if err == nil {
		logger.Info("mentor account already exists, skipping seed", "email", email)
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("look up seed mentor: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := users.Create(ctx, &entity.User{Email: email, PasswordHash: string(hash)}); err != nil {
		return fmt.Errorf("seed mentor: %w", err)
	}

	logger.Info("mentor account seeded", "email", email)
	return nil
}
