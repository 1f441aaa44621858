package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/gabriel-vasile/mimetype"

	"uncommon.org/progresstrack/internal/entity"
	"uncommon.org/progresstrack/internal/modules/student/dto"
	"uncommon.org/progresstrack/internal/modules/student/repository"
	"uncommon.org/progresstrack/pkg/apperror"
	"uncommon.org/progresstrack/pkg/validator"
)

const (
	ProfileTracker    = "tracker"
	ProfileEnrollment = "enrollment"

	minAge = 3
	maxAge = 120
)

// requiredByProfile lists required fields in the order they are reported.
var requiredByProfile = map[string][]string{
	ProfileTracker:    {"name", "school", "hub", "currentActivity"},
	ProfileEnrollment: {"name", "school", "hub", "age", "email"},
}

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// columnFor maps canonical input names to store columns.
var columnFor = map[string]string{
	"name":            repository.FieldName,
	"school":          repository.FieldSchool,
	"hub":             repository.FieldHub,
	"currentActivity": repository.FieldCurrentActivity,
	"age":             repository.FieldAge,
	"gender":          repository.FieldGender,
	"status":          repository.FieldStatus,
	"email":           repository.FieldEmail,
}

// normalized holds cleaned values for the fields that were present.
type normalized struct {
	values map[string]string
	age    *int
}

type normalizer struct {
	required []string
}

func newNormalizer(profile string) (*normalizer, error) {
	required, ok := requiredByProfile[profile]
	if !ok {
		return nil, fmt.Errorf("unknown student profile %q", profile)
	}
	return &normalizer{required: required}, nil
}

func (n *normalizer) isRequired(field string) bool {
	for _, f := range n.required {
		if f == field {
			return true
		}
	}
	return false
}

func (n *normalizer) clean(field, value string) string {
	value = strings.TrimSpace(value)
	if field == "email" {
		return strings.ToLower(value)
	}
	return value
}

// normalize cleans and checks the present fields. With full set, every
// required field must be present; otherwise only present required fields
// must be non-empty. All problems are collected before returning.
func (n *normalizer) normalize(fields map[string]string, full bool) (*normalized, error) {
	verr := &apperror.ValidationError{}
	out := &normalized{values: make(map[string]string, len(fields))}

	for field, raw := range fields {
		out.values[field] = n.clean(field, raw)
	}

	for _, field := range n.required {
		value, present := out.values[field]
		if (full && !present) || (present && value == "") {
			verr.Missing(field)
		}
	}

	if email, ok := out.values["email"]; ok && email != "" {
		if err := validator.Var(email, "email"); err != nil {
			verr.Invalid("email", "must be a valid email address")
		}
	}

	if status, ok := out.values["status"]; ok {
		switch {
		case status == "" && full:
			out.values["status"] = string(entity.StatusActive)
		case status == "" && !full:
			verr.Invalid("status", "must be one of Active, Completed, Pending")
		default:
			if err := validator.Var(status, "oneof=Active Completed Pending"); err != nil {
				verr.Invalid("status", "must be one of Active, Completed, Pending")
			}
		}
	}

	if raw, ok := out.values["age"]; ok && raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			verr.Invalid("age", "must be a whole number")
		} else if age < minAge || age > maxAge {
			verr.Invalid("age", fmt.Sprintf("must be between %d and %d", minAge, maxAge))
		} else {
			out.age = &age
		}
	}

	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// newStudent builds a record from a normalized create input.
func (v *normalized) newStudent() *entity.Student {
	s := &entity.Student{
		Name:            v.values["name"],
		School:          v.values["school"],
		Hub:             v.values["hub"],
		CurrentActivity: v.values["currentActivity"],
		Gender:          v.values["gender"],
		Status:          entity.StudentStatus(v.values["status"]),
		Age:             v.age,
	}
	if s.Status == "" {
		s.Status = entity.StatusActive
	}
	if email := v.values["email"]; email != "" {
		s.Email = &email
	}
	return s
}

// patch converts a normalized update input into store columns. Empty
// optional values clear the column.
func (v *normalized) patch() repository.Patch {
	p := make(repository.Patch, len(v.values))
	for field, value := range v.values {
		column := columnFor[field]
		switch field {
		case "age":
			if v.age == nil {
				p[column] = nil
			} else {
				p[column] = *v.age
			}
		case "email":
			if value == "" {
				p[column] = nil
			} else {
				p[column] = value
			}
		default:
			p[column] = value
		}
	}
	return p
}

// checkImage enforces the upload policy on content type and size. The reader
// is rewound after sniffing.
func checkImage(img *dto.ImageFile, maxBytes int64) error {
	if maxBytes > 0 && img.Size > maxBytes {
		return apperror.NewValidationError("image", "must be at most "+units.HumanSize(float64(maxBytes)))
	}

	mtype, err := mimetype.DetectReader(img.Reader)
	if err != nil {
		return apperror.NewValidationError("image", "could not be read")
	}
	if _, err := img.Reader.Seek(0, io.SeekStart); err != nil {
		return apperror.NewValidationError("image", "could not be read")
	}

	for _, allowed := range allowedImageTypes {
		if mtype.Is(allowed) {
			return nil
		}
	}
	return apperror.NewValidationError("image", "must be a JPEG, PNG, GIF or WebP image")
}
