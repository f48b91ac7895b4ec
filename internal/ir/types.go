package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind identifies the shape of a Type.
type TypeKind uint8

const (
	// InvalidTypeKind is the kind of the zero Type.
	InvalidTypeKind TypeKind = iota
	// NoneKind is the unit type.
	NoneKind
	// IntegerKind is a fixed-width signless integer (i1 .. i64).
	IntegerKind
	// IndexKind is the platform-width integer used for sizes and indices.
	IndexKind
	// FunctionKind is a function signature (inputs) -> results.
	FunctionKind
)

// IndexWidth is the bit width of the index type on every supported target.
const IndexWidth = 64

// MaxIntegerWidth bounds integer types to a single machine word.
const MaxIntegerWidth = 64

type typeStorage struct {
	ctx     *Context
	id      int
	kind    TypeKind
	width   uint
	inputs  []Type
	results []Type
}

// Type is an interned handle to a type owned by a Context.
// Two handles are equal exactly when they describe the same type.
// The zero Type is invalid.
type Type struct {
	s *typeStorage
}

// IsNull reports whether t is the zero Type.
func (t Type) IsNull() bool { return t.s == nil }

// Kind returns the type kind.
func (t Type) Kind() TypeKind {
	if t.s == nil {
		return InvalidTypeKind
	}
	return t.s.kind
}

// Context returns the owning context.
func (t Type) Context() *Context {
	if t.s == nil {
		return nil
	}
	return t.s.ctx
}

// ID returns the arena index of the type within its Context.
func (t Type) ID() int {
	if t.s == nil {
		return -1
	}
	return t.s.id
}

func (t Type) IsInteger() bool  { return t.Kind() == IntegerKind }
func (t Type) IsIndex() bool    { return t.Kind() == IndexKind }
func (t Type) IsFunction() bool { return t.Kind() == FunctionKind }
func (t Type) IsNone() bool     { return t.Kind() == NoneKind }

// IsIntegerLike reports whether t is an integer or index type.
func (t Type) IsIntegerLike() bool {
	k := t.Kind()
	return k == IntegerKind || k == IndexKind
}

// IsBool reports whether t is i1.
func (t Type) IsBool() bool {
	return t.Kind() == IntegerKind && t.s.width == 1
}

// Width returns the bit width of an integer-like type and 0 otherwise.
func (t Type) Width() uint {
	switch t.Kind() {
	case IntegerKind:
		return t.s.width
	case IndexKind:
		return IndexWidth
	default:
		return 0
	}
}

// Inputs returns the parameter types of a function type.
func (t Type) Inputs() []Type {
	if t.Kind() != FunctionKind {
		return nil
	}
	return append([]Type(nil), t.s.inputs...)
}

// Results returns the result types of a function type.
func (t Type) Results() []Type {
	if t.Kind() != FunctionKind {
		return nil
	}
	return append([]Type(nil), t.s.results...)
}

func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.Kind() {
	case InvalidTypeKind:
		b.WriteString("<<null type>>")
	case NoneKind:
		b.WriteString("none")
	case IntegerKind:
		b.WriteByte('i')
		b.WriteString(strconv.FormatUint(uint64(t.s.width), 10))
	case IndexKind:
		b.WriteString("index")
	case FunctionKind:
		writeTypeList(b, t.s.inputs, true)
		b.WriteString(" -> ")
		writeTypeList(b, t.s.results, len(t.s.results) != 1 || t.s.results[0].IsFunction())
	}
}

// writeTypeList writes (a, b, c). A single non-function type may be written
// without parentheses when paren is false.
func writeTypeList(b *strings.Builder, types []Type, paren bool) {
	if paren {
		b.WriteByte('(')
	}
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		t.write(b)
	}
	if paren {
		b.WriteByte(')')
	}
}

// FormatTypes renders a type list the way function signatures are printed.
func FormatTypes(types []Type) string {
	var b strings.Builder
	writeTypeList(&b, types, true)
	return b.String()
}

// IntegerType returns the signless integer type of the given bit width.
// Panics if width is outside [1, MaxIntegerWidth]; use ValidIntegerWidth to
// check untrusted input.
func (c *Context) IntegerType(width uint) Type {
	if !ValidIntegerWidth(width) {
		panic(fmt.Sprintf("ir: invalid integer width %d", width))
	}
	key := "i" + strconv.FormatUint(uint64(width), 10)
	return c.internType(key, func() *typeStorage {
		return &typeStorage{kind: IntegerKind, width: width}
	})
}

// ValidIntegerWidth reports whether width can be used for an integer type.
func ValidIntegerWidth(width uint) bool {
	return width >= 1 && width <= MaxIntegerWidth
}

// IndexType returns the platform-width index type.
func (c *Context) IndexType() Type {
	return c.internType("index", func() *typeStorage {
		return &typeStorage{kind: IndexKind}
	})
}

// NoneType returns the unit type.
func (c *Context) NoneType() Type {
	return c.internType("none", func() *typeStorage {
		return &typeStorage{kind: NoneKind}
	})
}

// FunctionType returns the function type (inputs) -> (results).
// Every component type must belong to c.
func (c *Context) FunctionType(inputs, results []Type) (Type, error) {
	for _, t := range inputs {
		if err := c.checkType(t); err != nil {
			return Type{}, fmt.Errorf("function input: %w", err)
		}
	}
	for _, t := range results {
		if err := c.checkType(t); err != nil {
			return Type{}, fmt.Errorf("function result: %w", err)
		}
	}

	key := functionKey(inputs, results)
	return c.internType(key, func() *typeStorage {
		return &typeStorage{
			kind:    FunctionKind,
			inputs:  append([]Type(nil), inputs...),
			results: append([]Type(nil), results...),
		}
	}), nil
}

// MustFunctionType is like FunctionType but panics on error.
// Use only in tests or when inputs are known to be valid.
func (c *Context) MustFunctionType(inputs, results []Type) Type {
	t, err := c.FunctionType(inputs, results)
	if err != nil {
		panic(err)
	}
	return t
}

// functionKey builds the structural key of a function type from the arena
// indices of its components, which are themselves interned.
func functionKey(inputs, results []Type) string {
	b := make([]byte, 0, 16+4*(len(inputs)+len(results)))
	b = append(b, "fn:("...)
	for i, t := range inputs {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(t.s.id), 10)
	}
	b = append(b, ")->("...)
	for i, t := range results {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(t.s.id), 10)
	}
	b = append(b, ')')
	return string(b)
}

// checkType reports whether t is a valid type owned by c.
func (c *Context) checkType(t Type) error {
	if t.IsNull() {
		return fmt.Errorf("null type")
	}
	if t.s.ctx != c {
		return &ContextError{Message: fmt.Sprintf("type %s belongs to another context", t)}
	}
	return nil
}
