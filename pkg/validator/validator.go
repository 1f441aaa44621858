package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"uncommon.org/progresstrack/pkg/apperror"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Var validates a single value against a tag expression such as "email".
func Var(value any, tag string) error {
	return validate.Var(value, tag)
}

func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			message := getFieldErrorMessage(fieldError)
			messages = append(messages, message)
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

// ToValidationError converts binding errors into an apperror.ValidationError so
// handlers report every failing field in one response. Errors that did not
// come from the validator (malformed JSON, wrong types) become a single
// "body" entry.
func ToValidationError(err error) *apperror.ValidationError {
	out := &apperror.ValidationError{}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		out.Invalid("body", err.Error())
		return out
	}

	for _, fe := range validationErrors {
		field := getFieldName(fe.Field())
		if fe.Tag() == "required" {
			out.Missing(field)
			continue
		}
		out.Invalid(field, strings.TrimPrefix(getFieldErrorMessage(fe), field+" "))
	}
	return out
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Email":           "email",
		"Password":        "password",
		"Name":            "name",
		"School":          "school",
		"Hub":             "hub",
		"CurrentActivity": "currentActivity",
		"SearchTerm":      "searchTerm",
		"Status":          "status",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}
