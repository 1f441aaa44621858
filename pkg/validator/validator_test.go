package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type registerInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestToValidationError(t *testing.T) {
	err := validate.Struct(registerInput{Password: "short"})
	assert.Error(t, err)

	v := ToValidationError(err)
	assert.Equal(t, []string{"email"}, v.MissingFields)
	assert.Equal(t, "must be at least 8 characters", v.InvalidFields["password"])
	assert.Equal(t, "email is required; password must be at least 8 characters", FormatValidationError(err))
}

func TestToValidationError_NonValidatorError(t *testing.T) {
	v := ToValidationError(errors.New("unexpected EOF"))
	assert.Empty(t, v.MissingFields)
	assert.Equal(t, "unexpected EOF", v.InvalidFields["body"])
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("anna@hub.org", "email"))
	assert.Error(t, Var("not-an-email", "email"))
	assert.NoError(t, Var(12, "gte=3,lte=120"))
	assert.Error(t, Var(200, "gte=3,lte=120"))
}
