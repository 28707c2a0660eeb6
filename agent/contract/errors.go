package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrSchemaViolation   = errors.New("schema violation")
	ErrPromptMissing     = errors.New("required prompt is missing")
	ErrValidation        = errors.New("validation failed")
	ErrTimeout           = errors.New("agent timed out")
	ErrUpstream          = errors.New("inference backend failed")
	ErrBudgetExceeded    = errors.New("token budget exceeded")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrDependencySkipped = errors.New("skipped due to failed dependency")
	ErrUnknownTaskClass  = errors.New("unknown task class")
	ErrNotFound          = errors.New("not found")
)

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Backends use it for rate limits and 5xx responses.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

func IsTransient(err error) bool {
	var t transientError
	return errors.As(err, &t)
}
