package colbench

import (
	"errors"
	"fmt"
)

// ErrUnknownEngine is returned when a take run names an unregistered engine.
var ErrUnknownEngine = errors.New("unknown engine")

// ConfigError reports invalid settings detected before any work started.
//
// The original underlying error can be accessed via errors.Unwrap.
type ConfigError struct {
	cause error
}

// NewConfigError wraps err. A nil err yields nil.
func NewConfigError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return &ConfigError{cause: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.cause)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// RowCountError indicates that a dataset returned a different number of rows
// than expected. It is always fatal.
type RowCountError struct {
	Engine string
	// Stage is "write", "open", "warmup" or "timed".
	Stage string
	Got   int64
	Want  int64
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("%s: %s row count mismatch: got %d rows, expected %d", e.Engine, e.Stage, e.Got, e.Want)
}
