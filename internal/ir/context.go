package ir

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Variadic marks an OpDefinition count that accepts any number of elements.
const Variadic = -1

// OpDefinition describes one registered operation kind.
//
// Counts are exact unless set to Variadic. Verify is the kind-specific
// predicate run by the verifier after the generic structural checks; it
// may be nil.
type OpDefinition struct {
	Name       string
	Summary    string
	Operands   int
	Results    int
	Regions    int
	Successors int

	// Terminator marks operations that end a block.
	Terminator bool

	// NoTerminator marks operations whose regions hold straight-line
	// blocks that need not end in a terminator (e.g. builtin.module).
	NoTerminator bool

	// IsolatedFromAbove forbids nested operations from using values
	// defined outside the operation.
	IsolatedFromAbove bool

	// Symbol marks operations that define a symbol through sym_name.
	Symbol bool

	Verify func(op *Operation) error
}

// Dialect returns the namespace prefix of the operation name.
func (d *OpDefinition) Dialect() string {
	return DialectOf(d.Name)
}

// DialectOf returns the namespace prefix of an operation name ("arith" for
// "arith.addi"), or "" when the name has no prefix.
func DialectOf(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return ""
}

// Dialect is a named set of operation kinds loaded together.
type Dialect struct {
	Name       string
	Operations []OpDefinition
}

// Context owns interned types and attributes and the registry of
// operation kinds. Everything built from a Context is valid only with
// that Context.
//
// Thread-safety: interning and lookups are safe for concurrent use.
// Loading dialects must happen before the Context is shared.
type Context struct {
	mu sync.RWMutex

	types   []*typeStorage
	typeMap map[string]*typeStorage
	attrs   []*attrStorage
	attrMap map[string]*attrStorage

	dialects          map[string]bool
	ops               map[string]*OpDefinition
	allowUnregistered bool
}

// NewContext creates a Context with the builtin dialect loaded.
func NewContext() *Context {
	c := &Context{
		typeMap:  make(map[string]*typeStorage, 16),
		attrMap:  make(map[string]*attrStorage, 16),
		dialects: make(map[string]bool),
		ops:      make(map[string]*OpDefinition),
	}
	if err := c.LoadDialect(builtinDialect()); err != nil {
		panic(err)
	}
	return c
}

// LoadDialect registers every operation kind of d.
// Loading the same operation twice is an error; loading a dialect whose
// operations are all already registered is a no-op.
func (c *Context) LoadDialect(d Dialect) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialects[d.Name] {
		return nil
	}

	for i := range d.Operations {
		def := d.Operations[i]
		if DialectOf(def.Name) != d.Name {
			return fmt.Errorf("load dialect %s: operation %q is outside the dialect namespace", d.Name, def.Name)
		}
		if _, exists := c.ops[def.Name]; exists {
			return fmt.Errorf("load dialect %s: operation %q already registered", d.Name, def.Name)
		}
	}

	for i := range d.Operations {
		def := d.Operations[i]
		c.ops[def.Name] = &def
	}
	c.dialects[d.Name] = true

	return nil
}

// IsLoaded reports whether the named dialect has been loaded.
func (c *Context) IsLoaded(dialect string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dialects[dialect]
}

// Dialects returns the names of the loaded dialects in sorted order.
func (c *Context) Dialects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.dialects))
	for name := range c.dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the definition of a registered operation kind.
func (c *Context) Lookup(name string) (*OpDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.ops[name]
	return def, ok
}

// SetAllowUnregistered controls whether the verifier accepts operations of
// kinds that no loaded dialect defines.
func (c *Context) SetAllowUnregistered(allow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowUnregistered = allow
}

// AllowsUnregistered reports the SetAllowUnregistered setting.
func (c *Context) AllowsUnregistered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allowUnregistered
}

// NumTypes returns the number of interned types.
func (c *Context) NumTypes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

// NumAttributes returns the number of interned attributes.
func (c *Context) NumAttributes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.attrs)
}

// internType returns the type for key, creating it with mk on first use.
func (c *Context) internType(key string, mk func() *typeStorage) Type {
	c.mu.RLock()
	s, ok := c.typeMap[key]
	c.mu.RUnlock()
	if ok {
		return Type{s: s}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.typeMap[key]; ok {
		return Type{s: s}
	}

	s = mk()
	s.ctx = c
	s.id = len(c.types)
	c.types = append(c.types, s)
	c.typeMap[key] = s

	return Type{s: s}
}

// internAttr returns the attribute for key, creating it with mk on first use.
func (c *Context) internAttr(key string, mk func() *attrStorage) Attribute {
	c.mu.RLock()
	s, ok := c.attrMap[key]
	c.mu.RUnlock()
	if ok {
		return Attribute{s: s}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.attrMap[key]; ok {
		return Attribute{s: s}
	}

	s = mk()
	s.ctx = c
	s.id = len(c.attrs)
	c.attrs = append(c.attrs, s)
	c.attrMap[key] = s

	return Attribute{s: s}
}
