package scoring

import (
	"errors"
	"fmt"
)

// Validation sentinels. They are raised before any request is sent and are
// always wrapped in a *ValidationError.
var (
	ErrMissingPlayer        = errors.New("missing player")
	ErrMissingAction        = errors.New("missing action")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidField         = errors.New("invalid field")
	ErrInvalidPlayer        = errors.New("player not available")
	ErrMissingToss          = errors.New("missing toss decision")
	ErrMissingTeam          = errors.New("missing batting team")
)

// Workflow guards.
var (
	ErrSubmissionInFlight = errors.New("a score update is already in flight")
	ErrTransitionInFlight = errors.New("a status change is already in flight")
	ErrMatchCompleted     = errors.New("match is completed")
	ErrMatchNotLive       = errors.New("match is not live")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrUnsupported        = errors.New("not supported for this sport")
	ErrSessionClosed      = errors.New("session is closed")
)

// ValidationError is a locally detected problem with the admin's input.
type ValidationError struct {
	Err     error
	Field   Field
	Action  Action
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was raised by local validation.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func invalid(kind error, field Field, action Action, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Err:     kind,
		Field:   field,
		Action:  action,
		Message: fmt.Sprintf(format, args...),
	}
}
