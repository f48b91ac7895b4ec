package ir

import (
	"errors"
	"fmt"
)

// ErrModuleBusy is returned by Module.Lock when another writer already holds
// the module.
var ErrModuleBusy = errors.New("module is locked by another writer")

// ArityError reports an operand, result, region or successor count that does
// not match what the operation kind declares.
type ArityError struct {
	Op       string
	What     string // "operand", "result", "region" or "successor"
	Expected int
	Actual   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: expected %d %s(s), got %d", e.Op, e.Expected, e.What, e.Actual)
}

// TypeMismatchError reports operand, result or attribute types that violate
// an operation kind's type constraints.
type TypeMismatchError struct {
	Op      string
	Message string
}

func (e *TypeMismatchError) Error() string {
	if e.Op == "" {
		return "type mismatch: " + e.Message
	}
	return fmt.Sprintf("%s: type mismatch: %s", e.Op, e.Message)
}

// OwnershipError reports structural mutation misuse: attaching something
// that already has an owner, or erasing an operation whose results are
// still used.
type OwnershipError struct {
	Op      string
	Message string
}

func (e *OwnershipError) Error() string {
	if e.Op == "" {
		return "ownership: " + e.Message
	}
	return fmt.Sprintf("%s: ownership: %s", e.Op, e.Message)
}

// IndexError reports an out-of-range result, argument or operand index.
type IndexError struct {
	What  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.What, e.Index, e.Len)
}

// ContextError reports a type, attribute or value that belongs to another
// Context than the container it is used in.
type ContextError struct {
	Op      string
	Message string
}

func (e *ContextError) Error() string {
	if e.Op == "" {
		return "context mismatch: " + e.Message
	}
	return fmt.Sprintf("%s: context mismatch: %s", e.Op, e.Message)
}

// IsArityError returns true if err is or wraps an ArityError.
func IsArityError(err error) bool {
	var ae *ArityError
	return errors.As(err, &ae)
}

// IsTypeMismatchError returns true if err is or wraps a TypeMismatchError.
func IsTypeMismatchError(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}

// IsOwnershipError returns true if err is or wraps an OwnershipError.
func IsOwnershipError(err error) bool {
	var oe *OwnershipError
	return errors.As(err, &oe)
}
