package person

import (
	"errors"
	"fmt"

	"github.com/synaptica-ai/registry/pkg/birthdate"
)

var (
	errMalformedForm = errors.New("malformed demographics form")
	errMissingPerson = errors.New("person_id required")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

// IsValidationError reports input errors, including unusable birthdate parts.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || errors.Is(err, birthdate.ErrInvalidInput)
}

func invalid(format string, args ...interface{}) error {
	return ValidationError{reason: fmt.Errorf(format, args...)}
}
