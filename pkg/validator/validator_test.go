package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerForm struct {
	Name     string `validate:"required,min=1,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(registerForm{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "longenoughpassword",
	})
	assert.NoError(t, err)
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	err := Validate(registerForm{
		Name:     "",
		Email:    "not-an-email",
		Password: "short",
	})

	require.Error(t, err)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))

	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["Name"])
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Equal(t, "must be at least 8 characters", fields["Password"])
}

func TestValidationError_Message(t *testing.T) {
	err := Validate(registerForm{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "short",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password")
	assert.Contains(t, err.Error(), "at least 8 characters")
}
