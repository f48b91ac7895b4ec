package verify

import (
	"fmt"
	"strings"

	"github.com/roach88/irkit/internal/ir"
)

// Verification error codes (E201-E299).
const (
	ErrUnknownOperation  = "E201" // kind not defined by a loaded dialect
	ErrArity             = "E202" // operand/result/region/successor count
	ErrTypeMismatch      = "E203" // kind-specific type constraint
	ErrMissingTerminator = "E204" // block does not end in a terminator
	ErrAfterTerminator   = "E205" // operation follows a terminator
	ErrNotDominated      = "E206" // operand not dominated by its definition
	ErrOwnership         = "E207" // inconsistent parent links
	ErrContextMismatch   = "E208" // value/type/attribute from another context
	ErrSuccessor         = "E209" // bad branch target or branch operands
	ErrSymbol            = "E210" // duplicate or unresolved symbol
	ErrIsolatedFromAbove = "E211" // isolated op uses a value from outside
	ErrInvalidOperation  = "E212" // other kind-specific constraint
)

// Error is one verification violation.
type Error struct {
	Code     string      `json:"code"`
	Op       string      `json:"op"`
	Path     string      `json:"path"`
	Message  string      `json:"message"`
	Location ir.Location `json:"-"`
}

// Error implements the error interface.
func (e Error) Error() string {
	if !e.Location.IsUnknown() {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Location.Short(), e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Failure wraps the complete list of violations of a failed verification.
type Failure struct {
	Errors []Error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if len(f.Errors) == 1 {
		return "verification failed: " + f.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "verification failed with %d errors:", len(f.Errors))
	for _, e := range f.Errors {
		b.WriteString("\n  ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// Codes returns the distinct codes present, in first-seen order.
func (f *Failure) Codes() []string {
	return Codes(f.Errors)
}

// Codes returns the distinct codes present in errs, in first-seen order.
func Codes(errs []Error) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, e := range errs {
		if !seen[e.Code] {
			seen[e.Code] = true
			codes = append(codes, e.Code)
		}
	}
	return codes
}
