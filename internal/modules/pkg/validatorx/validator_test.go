package validatorx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" validate:"required,alphanum,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		err := v.Validate(signup{Username: "alice", Email: "alice@example.com", Password: "s3cretpass"})
		require.NoError(t, err)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		err := v.Validate(signup{Username: "al", Email: "nope", Password: "short"})

		var ve ValidationError
		require.True(t, errors.As(err, &ve))
		require.Len(t, ve.Errors, 3)

		fields := ve.Fields()
		require.Equal(t, "This field must be at least 3 characters long", fields["username"])
		require.Equal(t, "Invalid email format", fields["email"])
		require.Equal(t, "This field must be at least 8 characters long", fields["password"])
	})

	t.Run("single error message names the field", func(t *testing.T) {
		err := v.Validate(signup{Username: "alice", Email: "alice@example.com"})
		require.EqualError(t, err, "validation failed: password: This field is required")
	})
}
