// ABOUTME: Sentinel errors and the ValidationError type for regatta operations
// ABOUTME: ValidationError carries a user-facing message for form handlers

package regatta

import "errors"

var (
	ErrInvalidDivision = errors.New("invalid division")
	ErrInvalidModifier = errors.New("invalid penalty or breakdown")
	ErrInvalidFinishes = errors.New("invalid finishes")
	ErrUnknownTeam     = errors.New("unknown team")
	ErrUnknownRace     = errors.New("unknown race")
	ErrFinalized       = errors.New("regatta is finalized")
)

// ValidationError reports bad user input. Message is safe to show to scorers.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError wrapping err.
func Invalid(err error, field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return "An unexpected error occurred."
}
