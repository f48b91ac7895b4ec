package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AttrKind identifies the shape of an Attribute.
type AttrKind uint8

const (
	InvalidAttrKind AttrKind = iota
	StringAttrKind
	IntegerAttrKind
	BoolAttrKind
	TypeAttrKind
	UnitAttrKind
	SymbolRefAttrKind
)

type attrStorage struct {
	ctx  *Context
	id   int
	kind AttrKind
	str  string
	num  int64
	typ  Type
}

// Attribute is an interned, immutable constant attached to operations.
// Equal attributes from the same Context compare equal with ==.
type Attribute struct {
	s *attrStorage
}

// NamedAttribute is one entry of an operation's attribute dictionary.
type NamedAttribute struct {
	Name  string
	Value Attribute
}

// IsNull reports whether a is the zero Attribute.
func (a Attribute) IsNull() bool { return a.s == nil }

func (a Attribute) Kind() AttrKind {
	if a.s == nil {
		return InvalidAttrKind
	}
	return a.s.kind
}

func (a Attribute) Context() *Context {
	if a.s == nil {
		return nil
	}
	return a.s.ctx
}

// Str returns the payload of string and symbol reference attributes.
func (a Attribute) Str() string {
	if a.s == nil {
		return ""
	}
	return a.s.str
}

// Int returns the payload of integer attributes (1/0 for bool attributes).
func (a Attribute) Int() int64 {
	if a.s == nil {
		return 0
	}
	return a.s.num
}

// Bool returns the payload of bool attributes.
func (a Attribute) Bool() bool {
	return a.Kind() == BoolAttrKind && a.s.num != 0
}

// Type returns the payload of type attributes or the type of integer
// attributes.
func (a Attribute) Type() Type {
	if a.s == nil {
		return Type{}
	}
	return a.s.typ
}

func (a Attribute) String() string {
	switch a.Kind() {
	case StringAttrKind:
		return strconv.Quote(a.s.str)
	case IntegerAttrKind:
		return strconv.FormatInt(a.s.num, 10) + " : " + a.s.typ.String()
	case BoolAttrKind:
		return strconv.FormatBool(a.s.num != 0)
	case TypeAttrKind:
		return a.s.typ.String()
	case UnitAttrKind:
		return "unit"
	case SymbolRefAttrKind:
		return "@" + a.s.str
	default:
		return "<<null attribute>>"
	}
}

// StringAttr returns the string attribute s.
func (c *Context) StringAttr(s string) Attribute {
	return c.internAttr("str:"+s, func() *attrStorage {
		return &attrStorage{kind: StringAttrKind, str: s}
	})
}

// SymbolRefAttr returns a flat reference to the symbol name.
func (c *Context) SymbolRefAttr(name string) Attribute {
	return c.internAttr("sym:"+name, func() *attrStorage {
		return &attrStorage{kind: SymbolRefAttrKind, str: name}
	})
}

// BoolAttr returns the boolean attribute b.
func (c *Context) BoolAttr(b bool) Attribute {
	var n int64
	if b {
		n = 1
	}
	return c.internAttr("bool:"+strconv.FormatBool(b), func() *attrStorage {
		return &attrStorage{kind: BoolAttrKind, num: n}
	})
}

// UnitAttr returns the unit attribute, used as a presence flag.
func (c *Context) UnitAttr() Attribute {
	return c.internAttr("unit", func() *attrStorage {
		return &attrStorage{kind: UnitAttrKind}
	})
}

// TypeAttr wraps a type as an attribute.
func (c *Context) TypeAttr(t Type) (Attribute, error) {
	if err := c.checkType(t); err != nil {
		return Attribute{}, err
	}
	return c.internAttr("type:"+strconv.Itoa(t.s.id), func() *attrStorage {
		return &attrStorage{kind: TypeAttrKind, typ: t}
	}), nil
}

// IntegerAttr returns an integer attribute of an integer-like type.
// The value is truncated to the type width and sign-extended so that equal
// bit patterns intern to the same attribute.
func (c *Context) IntegerAttr(t Type, v int64) (Attribute, error) {
	if err := c.checkType(t); err != nil {
		return Attribute{}, err
	}
	if !t.IsIntegerLike() {
		return Attribute{}, &TypeMismatchError{Message: fmt.Sprintf("integer attribute requires an integer-like type, got %s", t)}
	}

	v = SignExtend(uint64(v), t.Width())
	key := "int:" + strconv.Itoa(t.s.id) + ":" + strconv.FormatInt(v, 10)
	return c.internAttr(key, func() *attrStorage {
		return &attrStorage{kind: IntegerAttrKind, num: v, typ: t}
	}), nil
}

// SignExtend interprets the low width bits of raw as a two's complement
// integer.
func SignExtend(raw uint64, width uint) int64 {
	if width == 0 || width >= 64 {
		return int64(raw)
	}
	shift := 64 - width
	return int64(raw<<shift) >> shift
}

// Truncate keeps the low width bits of v.
func Truncate(v uint64, width uint) uint64 {
	if width == 0 || width >= 64 {
		return v
	}
	return v & (1<<width - 1)
}

// sortAttributes orders a dictionary by name, keeping the last entry for
// duplicated names.
func sortAttributes(attrs []NamedAttribute) []NamedAttribute {
	out := make([]NamedAttribute, 0, len(attrs))
	for _, a := range attrs {
		if i := slices.IndexFunc(out, func(x NamedAttribute) bool { return x.Name == a.Name }); i >= 0 {
			out[i] = a
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b NamedAttribute) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
