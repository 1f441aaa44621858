package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"uncommon.org/progresstrack/internal/entity"
	"uncommon.org/progresstrack/pkg/apperror"
)

type gormStudentRepository struct {
	db *gorm.DB
}

func NewGormStudentRepository(db *gorm.DB) StudentRepository {
	return &gormStudentRepository{db: db}
}

func (r *gormStudentRepository) Create(ctx context.Context, student *entity.Student) error {
	if err := r.db.WithContext(ctx).Create(student).Error; err != nil {
		return translateGormError(err)
	}
	return nil
}

func (r *gormStudentRepository) FindByID(ctx context.Context, id string) (*entity.Student, error) {
	var student entity.Student
	if err := r.db.WithContext(ctx).First(&student, "id = ?", id).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &student, nil
}

func (r *gormStudentRepository) Find(ctx context.Context, filter Filter) ([]*entity.Student, error) {
	var students []*entity.Student
	query := r.db.WithContext(ctx).Model(&entity.Student{})

	if filter.SearchTerm != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.SearchTerm)) + "%"
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern)
	}
	if filter.Hub != "" {
		query = query.Where("hub = ?", filter.Hub)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CurrentActivity != "" {
		query = query.Where("current_activity = ?", filter.CurrentActivity)
	}

	if err := query.Order("created_at ASC").Order("id ASC").Find(&students).Error; err != nil {
		return nil, translateGormError(err)
	}
	return students, nil
}

func (r *gormStudentRepository) Update(ctx context.Context, id string, patch Patch) (*entity.Student, error) {
	if len(patch) > 0 {
		result := r.db.WithContext(ctx).Model(&entity.Student{}).Where("id = ?", id).Updates(map[string]any(patch))
		if result.Error != nil {
			return nil, translateGormError(result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, apperror.ErrNotFound
		}
	}
	return r.FindByID(ctx, id)
}

func (r *gormStudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&entity.Student{}, "id = ?", id)
	if result.Error != nil {
		return false, translateGormError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *gormStudentRepository) Distinct(ctx context.Context, field string) ([]string, error) {
	if !DistinctFields[field] {
		return nil, apperror.NewValidationError("field", "must be one of hub, school, gender")
	}

	var values []string
	err := r.db.WithContext(ctx).Model(&entity.Student{}).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s <> ''", field, field)).
		Distinct(field).
		Pluck(field, &values).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return values, nil
}

func translateGormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: email already registered", apperror.ErrConflict)
	default:
		return fmt.Errorf("%w: %w", apperror.ErrStore, err)
	}
}
