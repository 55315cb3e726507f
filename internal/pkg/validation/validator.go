// Package validation wraps the go-playground/validator library, adding
// thread-safe initialization and standardized error formatting. Structs are
// validated through their `validate` tags and failures are reported as a
// multi-error chain rooted at ErrValidation.
package validation

import (
	"errors"
	"fmt"
	"sync"

	gvalidator "github.com/go-playground/validator/v10"
)

var (
	validator         *gvalidator.Validate
	initValidatorOnce sync.Once
)

// ErrValidation is returned as the first error when validation fails. It acts
// as a high-level indicator that one or more validation rules were violated.
var ErrValidation = errors.New("validation error")

// errStringFormat defines the format for individual validation error messages.
const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

// Init initializes the validator only once, enabling required field
// validation on structs. It is safe to call Init multiple times.
func Init() {
	initValidatorOnce.Do(func() {
		validator = gvalidator.New(gvalidator.WithRequiredStructEnabled())
	})
}

// formatError transforms a raw validator error into a multi-error chain with
// human-readable messages. The first error in the chain is always
// ErrValidation. Non-validation errors are returned unchanged.
func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := []error{ErrValidation}
	for _, validationErr := range validationErrors {
		err := fmt.Errorf(errStringFormat,
			validationErr.Field(),
			validationErr.Value(),
			validationErr.Tag(),
		)

		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate checks whether the given struct satisfies its validation tags. It
// returns nil when every field passes, or a combined error that includes
// ErrValidation and one formatted message per failing field.
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}
