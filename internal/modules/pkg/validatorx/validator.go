package validatorx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed rule on one field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError wraps every FieldError of a single Validate call
type ValidationError struct {
	Errors []FieldError
}

func (ve ValidationError) Error() string {
	if len(ve.Errors) == 1 {
		fe := ve.Errors[0]
		return fmt.Sprintf("validation failed: %s: %s", fe.Field, fe.Message)
	}
	return fmt.Sprintf("validation failed with %d error(s)", len(ve.Errors))
}

// Fields returns the errors keyed by field name, the shape the API uses
// for its validationErrors object. The first message per field wins.
func (ve ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(ve.Errors))
	for _, fe := range ve.Errors {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// Validator wraps go-playground/validator. It satisfies echo.Validator and
// is also used by the client to reject bad input before any network call.
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a Validator that reports fields by their json name
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validator: v}
}

// Validate runs struct validation and converts failures into a ValidationError
func (v *Validator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		out := ValidationError{
			Errors: make([]FieldError, len(validationErrors)),
		}
		for i, fe := range validationErrors {
			out.Errors[i] = FieldError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Message: msgForTag(fe.Tag(), fe.Param()),
			}
		}
		return out
	}
	return err
}

func msgForTag(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("This field must be at least %s characters long", param)
	case "max":
		return fmt.Sprintf("This field must not exceed %s characters", param)
	case "alphanum":
		return "This field may only contain letters and digits"
	case "eqfield":
		return fmt.Sprintf("This field must match %s", param)
	case "oneof":
		return fmt.Sprintf("This field must be one of: %s", param)
	default:
		return fmt.Sprintf("Failed validation on rule: %s", tag)
	}
}
