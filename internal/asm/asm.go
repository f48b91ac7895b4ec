// Package asm reads and writes the textual form of IR modules.
//
// The generic form spells every operation as
//
//	%0 = "arith.addi"(%arg0, %arg0) : (i32, i32) -> i32
//
// and is understood for any operation kind, registered or not. A handful of
// common kinds also have a custom form, e.g.
//
//	func.func @add(%arg0: i32) -> i32 attributes {llvm.emit_c_interface} {
//	  %0 = arith.addi %arg0, %arg0 : i32
//	  return %0 : i32
//	}
//
// The parser accepts both; the printer emits the custom form only when
// asked with WithPrettyFunctions.
package asm

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/irkit/internal/ir"
)

// Option configures printing and parsing.
type Option func(*config)

type config struct {
	locations   bool
	pretty      bool
	diagnostics ir.DiagnosticHandler
	logger      *slog.Logger
}

func newConfig(opts []Option) config {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLocations prints a loc(...) trailer after every operation.
func WithLocations(on bool) Option {
	return func(c *config) { c.locations = on }
}

// WithPrettyFunctions prints func, return, call, constant, comparison and
// binary operations in their custom form.
func WithPrettyFunctions(on bool) Option {
	return func(c *config) { c.pretty = on }
}

// WithDiagnostics sends parse errors to h.
func WithDiagnostics(h ir.DiagnosticHandler) Option {
	return func(c *config) { c.diagnostics = h }
}

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// ParseError reports malformed input at a source position.
type ParseError struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
}

func (e *ParseError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d: %s", name, e.Line, e.Column, e.Message)
}

// Location returns the error position as an IR location.
func (e *ParseError) Location() ir.Location {
	return ir.FileLineColLoc(e.Filename, e.Line, e.Column)
}
