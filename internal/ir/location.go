package ir

import (
	"fmt"
	"strconv"
)

type locKind uint8

const (
	unknownLoc locKind = iota
	fileLineColLoc
	nameLoc
)

// Location is a source position attached to operations for diagnostics.
// The zero Location is unknown.
type Location struct {
	kind   locKind
	File   string
	Line   int
	Column int
	Name   string
}

// UnknownLoc returns the unknown location.
func UnknownLoc() Location { return Location{} }

// FileLineColLoc returns a file:line:column location.
func FileLineColLoc(file string, line, col int) Location {
	return Location{kind: fileLineColLoc, File: file, Line: line, Column: col}
}

// NameLoc returns a location identified by a name only.
func NameLoc(name string) Location {
	return Location{kind: nameLoc, Name: name}
}

// IsUnknown reports whether l carries no position.
func (l Location) IsUnknown() bool { return l.kind == unknownLoc }

// IsFileLineCol reports whether l is a file:line:column location.
func (l Location) IsFileLineCol() bool { return l.kind == fileLineColLoc }

// String renders l in the textual IR form: loc("file":1:2).
func (l Location) String() string {
	switch l.kind {
	case fileLineColLoc:
		return fmt.Sprintf("loc(%s:%d:%d)", strconv.Quote(l.File), l.Line, l.Column)
	case nameLoc:
		return fmt.Sprintf("loc(%s)", strconv.Quote(l.Name))
	default:
		return "loc(unknown)"
	}
}

// Short renders l for diagnostics: file:line:col, the name, or "<unknown>".
func (l Location) Short() string {
	switch l.kind {
	case fileLineColLoc:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	case nameLoc:
		return l.Name
	default:
		return "<unknown>"
	}
}
