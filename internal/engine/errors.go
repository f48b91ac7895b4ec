package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/irkit/internal/ir"
)

// CompileErrorCode categorizes compile failures.
type CompileErrorCode string

const (
	// CodeVerification means the module failed verification.
	CodeVerification CompileErrorCode = "VERIFICATION_FAILED"

	// CodeUnsupportedOperation means the module still contains an operation
	// outside the llvm dialect, or an llvm operation the engine cannot run.
	CodeUnsupportedOperation CompileErrorCode = "UNSUPPORTED_OPERATION"

	// CodeInvalidModule means the module is well formed but cannot be
	// executed, e.g. a call to a function that has no body.
	CodeInvalidModule CompileErrorCode = "INVALID_MODULE"
)

// CompileError reports why a module could not be compiled.
type CompileError struct {
	Code     CompileErrorCode
	Op       string
	Message  string
	Location ir.Location
	Err      error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if !e.Location.IsUnknown() {
		msg = e.Location.Short() + ": " + msg
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *CompileError) Unwrap() error { return e.Err }

func unsupported(op *ir.Operation, format string, args ...any) *CompileError {
	return &CompileError{
		Code:     CodeUnsupportedOperation,
		Op:       op.Name(),
		Message:  fmt.Sprintf(format, args...),
		Location: op.Location(),
	}
}

// InvocationErrorKind categorizes invocation failures.
type InvocationErrorKind string

const (
	// NotFound means no function with a body has the requested name.
	NotFound InvocationErrorKind = "NOT_FOUND"

	// ArityMismatch means the slot count differs from parameters plus
	// results.
	ArityMismatch InvocationErrorKind = "ARITY_MISMATCH"

	// Trap means execution aborted at runtime.
	Trap InvocationErrorKind = "TRAP"
)

// InvocationError reports a failed call into an Artifact.
type InvocationError struct {
	Kind     InvocationErrorKind
	Function string
	Message  string
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: @%s: %s", e.Kind, e.Function, e.Message)
}

// IsTrap reports whether err is a runtime trap.
func IsTrap(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.Kind == Trap
}

// IsNotFound reports whether err names a missing function.
func IsNotFound(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.Kind == NotFound
}

// trap aborts a running invocation. It is converted to an InvocationError
// at the packed entry point.
type trap struct {
	msg string
}

func (t *trap) Error() string { return t.msg }

var (
	errDivideByZero   = &trap{msg: "integer division by zero"}
	errSignedOverflow = &trap{msg: "signed division overflow"}
)
