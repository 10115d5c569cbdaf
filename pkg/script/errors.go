package script

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
)

// ErrTimeout is returned when a script runs longer than the evaluator allows.
var ErrTimeout = errors.New("script execution timeout")

// EvalError reports a failed script run.
type EvalError struct {
	// Script is the name the script was run under.
	Script string `json:"script"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Backtrace is the Starlark call stack at the point of failure, if any.
	Backtrace string `json:"backtrace,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Script, e.Message)
}

// Unwrap returns the underlying error, so topology errors raised by
// builtins stay reachable with errors.Is and errors.As.
func (e *EvalError) Unwrap() error {
	return e.Err
}

func newEvalError(script string, err error) *EvalError {
	e := &EvalError{Script: script, Message: err.Error(), Err: err}
	var se *starlark.EvalError
	if errors.As(err, &se) {
		e.Message = se.Msg
		e.Backtrace = se.Backtrace()
	}
	return e
}
