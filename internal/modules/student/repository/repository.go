package repository

import (
	"context"
	"strings"

	"uncommon.org/progresstrack/internal/entity"
)

// Column names shared by every driver. Patch keys use these.
const (
	FieldName            = "name"
	FieldSchool          = "school"
	FieldHub             = "hub"
	FieldCurrentActivity = "current_activity"
	FieldAge             = "age"
	FieldGender          = "gender"
	FieldStatus          = "status"
	FieldEmail           = "email"
	FieldImageStorageID  = "image_storage_id"
	FieldImageURL        = "image_url"
)

// DistinctFields are the only fields Distinct accepts.
var DistinctFields = map[string]bool{
	FieldHub:    true,
	FieldSchool: true,
	FieldGender: true,
}

// Filter constrains Find. Empty strings mean no constraint. SearchTerm is a
// case-insensitive substring match on name, the rest are exact matches.
type Filter struct {
	SearchTerm      string
	Hub             string
	Status          string
	CurrentActivity string
}

// Patch maps column names to new values. A nil value clears the column.
type Patch map[string]any

// StudentRepository is the record store. Implementations return
// apperror.ErrNotFound for unknown ids, apperror.ErrConflict for a duplicate
// email and wrap everything else in apperror.ErrStore.
type StudentRepository interface {
	Create(ctx context.Context, student *entity.Student) error
	FindByID(ctx context.Context, id string) (*entity.Student, error)
	Find(ctx context.Context, filter Filter) ([]*entity.Student, error)
	Update(ctx context.Context, id string, patch Patch) (*entity.Student, error)
	Delete(ctx context.Context, id string) (bool, error)
	Distinct(ctx context.Context, field string) ([]string, error)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
