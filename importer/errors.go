package importer

import "errors"

var (
	ErrJobNotFound          = errors.New("import job not found")
	ErrJobNotRunnable       = errors.New("import job is not runnable")
	ErrInvalidTransition    = errors.New("invalid import status transition")
	ErrUnknownField         = errors.New("unknown target field")
	ErrMissingRequiredField = errors.New("required target field not mapped")
	ErrInvalidPolicy        = errors.New("invalid duplicate handling policy")
	ErrRunnerClosed         = errors.New("job runner is shut down")
)

// RowError is a row-level failure. Message is shown to the user as the row's
// error; Err, when set, is the underlying cause reported as details.
type RowError struct {
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RowError) Unwrap() error {
	return e.Err
}
