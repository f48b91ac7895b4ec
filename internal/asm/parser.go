package asm

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/dialect/llvm"
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// forwardRefOp names the detached placeholder operations that stand in for
// values used before their definition.
const forwardRefOp = "asm.forward_ref"

// Parse reads a module in textual form. The input is either a single
// `module { ... }`, a generic "builtin.module" operation, or a bare list of
// operations that is wrapped in a new module.
//
// Every operation gets the location of its first token in filename unless
// it carries an explicit loc(...) trailer. The first error stops parsing and
// is returned as *ParseError.
func Parse(ctx *ir.Context, src, filename string, opts ...Option) (*ir.Module, error) {
	cfg := newConfig(opts)
	p := &parser{ctx: ctx, filename: filename, lex: newLexer(src)}

	m, err := p.parseTopLevel()
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			cfg.diagnostics.Emit(ir.Diagnostic{
				Severity: ir.SeverityError,
				Message:  pe.Message,
				Location: pe.Location(),
			})
		}
		cfg.logger.Debug("parse failed", "file", filename, "error", err)
		return nil, err
	}
	cfg.logger.Debug("parsed module", "file", filename, "operations", m.Body().NumOperations())
	return m, nil
}

// frame is the value namespace of an isolated-from-above operation.
type frame struct {
	values  map[string]*ir.Value
	pending map[string]*forwardRef
}

type forwardRef struct {
	value *ir.Value
	tok   token
}

// labels is the block namespace of one region.
type labels struct {
	blocks map[string]*blockRef
}

type blockRef struct {
	block   *ir.Block
	defined bool
	tok     token
}

type parser struct {
	ctx      *ir.Context
	filename string
	lex      *lexer
	tok      token

	frames []*frame
	scopes []*labels
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &ParseError{
		Filename: p.filename,
		Line:     tok.Line,
		Column:   tok.Column,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (p *parser) loc(tok token) ir.Location {
	return ir.FileLineColLoc(p.filename, tok.Line, tok.Column)
}

// next advances to the following token.
func (p *parser) next() error {
	tok, err := p.lex.next()
	if err != nil {
		var le *lexError
		if errors.As(err, &le) {
			return &ParseError{Filename: p.filename, Line: le.line, Column: le.col, Message: le.msg}
		}
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) at(kind tokenKind) bool { return p.tok.Kind == kind }

func (p *parser) atKeyword(word string) bool {
	return p.tok.Kind == tokBareIdent && p.tok.Value == word
}

// expect consumes a token of the given kind and returns it.
func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.tok
	if tok.Kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", kind, tok)
	}
	return tok, p.next()
}

// accept consumes the current token if it has the given kind.
func (p *parser) accept(kind tokenKind) (bool, error) {
	if p.tok.Kind != kind {
		return false, nil
	}
	return true, p.next()
}

// -----------------------------------------------------------------------------

func (p *parser) pushFrame() {
	p.frames = append(p.frames, &frame{
		values:  make(map[string]*ir.Value),
		pending: make(map[string]*forwardRef),
	})
}

// popFrame fails on the earliest use of a value that was never defined.
func (p *parser) popFrame() error {
	f := p.frames[len(p.frames)-1]
	p.frames = p.frames[:len(p.frames)-1]
	if len(f.pending) == 0 {
		return nil
	}
	refs := make([]*forwardRef, 0, len(f.pending))
	for _, r := range f.pending {
		refs = append(refs, r)
	}
	slices.SortFunc(refs, func(a, b *forwardRef) int {
		if a.tok.Line != b.tok.Line {
			return a.tok.Line - b.tok.Line
		}
		return a.tok.Column - b.tok.Column
	})
	return p.errorf(refs[0].tok, "use of undefined value %%%s", refs[0].tok.Value)
}

func (p *parser) frame() *frame { return p.frames[len(p.frames)-1] }

// useValue resolves a value reference of the expected type, creating a
// forward reference when the name is not defined yet.
func (p *parser) useValue(tok token, t ir.Type) (*ir.Value, error) {
	f := p.frame()
	if v, ok := f.values[tok.Value]; ok {
		if v.Type() != t {
			return nil, p.errorf(tok, "use of value %%%s expects type %s, but it has type %s", tok.Value, t, v.Type())
		}
		return v, nil
	}
	if ref, ok := f.pending[tok.Value]; ok {
		if ref.value.Type() != t {
			return nil, p.errorf(tok, "use of value %%%s expects type %s, but an earlier use expects %s", tok.Value, t, ref.value.Type())
		}
		return ref.value, nil
	}
	placeholder, err := ir.NewOperation(p.ctx, ir.OperationState{
		Name:        forwardRefOp,
		Location:    p.loc(tok),
		ResultTypes: []ir.Type{t},
	})
	if err != nil {
		return nil, err
	}
	v := placeholder.MustResult(0)
	f.pending[tok.Value] = &forwardRef{value: v, tok: tok}
	return v, nil
}

func (p *parser) defineValue(tok token, v *ir.Value) error {
	f := p.frame()
	if _, dup := f.values[tok.Value]; dup {
		return p.errorf(tok, "redefinition of value %%%s", tok.Value)
	}
	if ref, ok := f.pending[tok.Value]; ok {
		if ref.value.Type() != v.Type() {
			return p.errorf(ref.tok, "value %%%s is used as %s but defined as %s", tok.Value, ref.value.Type(), v.Type())
		}
		ref.value.ReplaceAllUsesWith(v)
		delete(f.pending, tok.Value)
	}
	f.values[tok.Value] = v
	return nil
}

func (p *parser) pushLabels() {
	p.scopes = append(p.scopes, &labels{blocks: make(map[string]*blockRef)})
}

func (p *parser) popLabels() error {
	s := p.scopes[len(p.scopes)-1]
	p.scopes = p.scopes[:len(p.scopes)-1]
	var first *blockRef
	for _, ref := range s.blocks {
		if ref.defined {
			continue
		}
		if first == nil || ref.tok.Line < first.tok.Line ||
			ref.tok.Line == first.tok.Line && ref.tok.Column < first.tok.Column {
			first = ref
		}
	}
	if first != nil {
		return p.errorf(first.tok, "reference to undefined block ^%s", first.tok.Value)
	}
	return nil
}

// blockRef returns the block named by tok, creating it on first reference.
func (p *parser) blockRef(tok token) *blockRef {
	s := p.scopes[len(p.scopes)-1]
	ref, ok := s.blocks[tok.Value]
	if !ok {
		ref = &blockRef{block: ir.NewBlock(), tok: tok}
		s.blocks[tok.Value] = ref
	}
	return ref
}

// -----------------------------------------------------------------------------

// top_level = 'module' [symbol] ['attributes' attr_dict] '{' op* '}'
//
//	| generic_op
//	| op*
func (p *parser) parseTopLevel() (*ir.Module, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	p.pushFrame()

	var m *ir.Module
	switch {
	case p.atKeyword("module"):
		var err error
		if m, err = p.parseModule(); err != nil {
			return nil, err
		}
	case p.at(tokString) && p.tok.Value == ir.ModuleOp:
		holder := ir.NewBlock()
		op, err := p.parseOperation(holder)
		if err != nil {
			return nil, err
		}
		op.Remove()
		if m, err = ir.ModuleFromOperation(op); err != nil {
			return nil, err
		}
	default:
		m = ir.NewModule(p.ctx, p.loc(p.tok))
		for !p.at(tokEOF) {
			if _, err := p.parseOperation(m.Body()); err != nil {
				return nil, err
			}
		}
	}

	if !p.at(tokEOF) {
		return nil, p.errorf(p.tok, "unexpected %s after module", p.tok)
	}
	if err := p.popFrame(); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) parseModule() (*ir.Module, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	m := ir.NewModule(p.ctx, p.loc(start))

	if p.at(tokSymbolID) {
		if err := m.Operation().SetAttr(ir.SymNameAttr, p.ctx.StringAttr(p.tok.Value)); err != nil {
			return nil, err
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if p.atKeyword("attributes") {
		if err := p.next(); err != nil {
			return nil, err
		}
		attrs, err := p.parseAttrDict()
		if err != nil {
			return nil, err
		}
		for _, a := range attrs {
			if err := m.Operation().SetAttr(a.Name, a.Value); err != nil {
				return nil, err
			}
		}
	}

	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	p.pushFrame()
	for !p.at(tokRBrace) {
		if p.at(tokEOF) {
			return nil, p.errorf(p.tok, "expected '}' to close module body")
		}
		if p.at(tokCaretID) {
			return nil, p.errorf(p.tok, "module body cannot contain block labels")
		}
		if _, err := p.parseOperation(m.Body()); err != nil {
			return nil, err
		}
	}
	if err := p.popFrame(); err != nil {
		return nil, err
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	if loc, ok, err := p.parseTrailingLoc(); err != nil {
		return nil, err
	} else if ok {
		m.Operation().SetLocation(loc)
	}
	return m, nil
}

// op = [result {',' result} '='] (generic_op | custom_op) [trailing_loc]
//
// result = value_id [':' integer]
func (p *parser) parseOperation(block *ir.Block) (*ir.Operation, error) {
	var results []resultGroup
	if p.at(tokValueID) {
		for {
			g, err := p.parseResultGroup()
			if err != nil {
				return nil, err
			}
			results = append(results, g)
			ok, err := p.accept(tokComma)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
		}
		if _, err := p.expect(tokEqual); err != nil {
			return nil, err
		}
	}

	start := p.tok
	var (
		op  *ir.Operation
		err error
	)
	switch start.Kind {
	case tokString:
		op, err = p.parseGenericOperation()
	case tokBareIdent:
		op, err = p.parseCustomOperation()
	default:
		return nil, p.errorf(start, "expected operation name, found %s", start)
	}
	if err != nil {
		return nil, err
	}

	if loc, ok, err := p.parseTrailingLoc(); err != nil {
		return nil, err
	} else if ok {
		op.SetLocation(loc)
	}

	if err := op.AppendTo(block); err != nil {
		return nil, err
	}
	named := 0
	for _, g := range results {
		named += g.count
	}
	if named != op.NumResults() {
		at := start
		if len(results) > 0 {
			at = results[0].tok
		}
		return nil, p.errorf(at, "%s defines %d result(s) but %d name(s) were given", op.Name(), op.NumResults(), named)
	}
	next := 0
	for _, g := range results {
		if err := p.defineGroup(g, op.Results()[next:next+g.count]); err != nil {
			return nil, err
		}
		next += g.count
	}
	return op, nil
}

// resultGroup is one name on the left of '=' and the number of results it
// binds.
type resultGroup struct {
	tok   token
	count int
}

func (p *parser) parseResultGroup() (resultGroup, error) {
	tok, err := p.expect(tokValueID)
	if err != nil {
		return resultGroup{}, err
	}
	if strings.Contains(tok.Value, "#") {
		return resultGroup{}, p.errorf(tok, "result name %%%s cannot select a result", tok.Value)
	}
	g := resultGroup{tok: tok, count: 1}
	if ok, err := p.accept(tokColon); err != nil || !ok {
		return g, err
	}
	countTok, err := p.expect(tokInteger)
	if err != nil {
		return resultGroup{}, err
	}
	n, err := strconv.Atoi(countTok.Value)
	if err != nil || n < 1 {
		return resultGroup{}, p.errorf(countTok, "result count must be a positive integer, found %s", countTok.Value)
	}
	g.count = n
	return g, nil
}

// defineGroup binds %name#i to each value. A group of one also binds the
// plain %name.
func (p *parser) defineGroup(g resultGroup, values []*ir.Value) error {
	if len(values) == 1 {
		if err := p.defineValue(g.tok, values[0]); err != nil {
			return err
		}
	}
	for i, v := range values {
		tok := g.tok
		tok.Value = g.tok.Value + "#" + strconv.Itoa(i)
		if err := p.defineValue(tok, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) isolated(name string) bool {
	def, ok := p.ctx.Lookup(name)
	return ok && def.IsolatedFromAbove
}

// generic_op = string '(' [value_id {',' value_id}] ')' [successors]
//
//	['(' region {',' region} ')'] [attr_dict] ':' function_type
func (p *parser) parseGenericOperation() (*ir.Operation, error) {
	nameTok := p.tok
	name := nameTok.Value
	if name == "" {
		return nil, p.errorf(nameTok, "operation name cannot be empty")
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	operandToks, err := p.parseValueIDList(tokRParen)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	var successors []ir.Successor
	if p.at(tokLSquare) {
		if successors, err = p.parseSuccessors(); err != nil {
			return nil, err
		}
	}

	var regions []*ir.Region
	if ok, err := p.accept(tokLParen); err != nil {
		return nil, err
	} else if ok {
		isolated := p.isolated(name)
		for {
			if isolated {
				p.pushFrame()
			}
			r, err := p.parseRegion(nil)
			if err != nil {
				return nil, err
			}
			if isolated {
				if err := p.popFrame(); err != nil {
					return nil, err
				}
			}
			regions = append(regions, r)
			ok, err := p.accept(tokComma)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}

	var attrs []ir.NamedAttribute
	if p.at(tokLBrace) {
		if attrs, err = p.parseAttrDict(); err != nil {
			return nil, err
		}
	}

	colon, err := p.expect(tokColon)
	if err != nil {
		return nil, err
	}
	inputs, resultTypes, err := p.parseFunctionSignature()
	if err != nil {
		return nil, err
	}
	if len(inputs) != len(operandToks) {
		return nil, p.errorf(colon, "%s has %d operand(s) but its type lists %d", name, len(operandToks), len(inputs))
	}
	operands, err := p.resolveValues(operandToks, inputs)
	if err != nil {
		return nil, err
	}

	op, err := ir.NewOperation(p.ctx, ir.OperationState{
		Name:        name,
		Location:    p.loc(nameTok),
		Operands:    operands,
		ResultTypes: resultTypes,
		Attributes:  attrs,
		Regions:     regions,
		Successors:  successors,
	})
	if err != nil {
		return nil, p.errorf(nameTok, "%v", err)
	}
	return op, nil
}

// parseValueIDList reads value_id {',' value_id} up to (not including) end.
func (p *parser) parseValueIDList(end tokenKind) ([]token, error) {
	var toks []token
	if p.at(end) {
		return nil, nil
	}
	for {
		tok, err := p.expect(tokValueID)
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		ok, err := p.accept(tokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			return toks, nil
		}
	}
}

func (p *parser) resolveValues(toks []token, types []ir.Type) ([]*ir.Value, error) {
	values := make([]*ir.Value, len(toks))
	for i, tok := range toks {
		v, err := p.useValue(tok, types[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// successors = '[' successor {',' successor} ']'
// successor  = caret_id ['(' value_id {',' value_id} ':' type {',' type} ')']
func (p *parser) parseSuccessors() ([]ir.Successor, error) {
	if _, err := p.expect(tokLSquare); err != nil {
		return nil, err
	}
	var out []ir.Successor
	for {
		s, err := p.parseSuccessor()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		ok, err := p.accept(tokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	if _, err := p.expect(tokRSquare); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseSuccessor() (ir.Successor, error) {
	tok, err := p.expect(tokCaretID)
	if err != nil {
		return ir.Successor{}, err
	}
	if len(p.scopes) == 0 {
		return ir.Successor{}, p.errorf(tok, "block reference outside of a region")
	}
	s := ir.Successor{Block: p.blockRef(tok).block}

	ok, err := p.accept(tokLParen)
	if err != nil || !ok {
		return s, err
	}
	names, err := p.parseValueIDList(tokColon)
	if err != nil {
		return s, err
	}
	colon, err := p.expect(tokColon)
	if err != nil {
		return s, err
	}
	types, err := p.parseTypeList()
	if err != nil {
		return s, err
	}
	if len(types) != len(names) {
		return s, p.errorf(colon, "successor ^%s lists %d value(s) and %d type(s)", tok.Value, len(names), len(types))
	}
	if s.Operands, err = p.resolveValues(names, types); err != nil {
		return s, err
	}
	_, err = p.expect(tokRParen)
	return s, err
}

// region = '{' [op*] {block_label op*} '}'
//
// When entry is non-nil it becomes the first block and receives the
// operations that precede the first label.
func (p *parser) parseRegion(entry *ir.Block) (*ir.Region, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	region := ir.NewRegion()
	p.pushLabels()

	var current *ir.Block
	if entry != nil || !p.at(tokCaretID) && !p.at(tokRBrace) {
		current = entry
		if current == nil {
			current = ir.NewBlock()
		}
		if err := region.AppendBlock(current); err != nil {
			return nil, err
		}
	}

	for !p.at(tokRBrace) {
		switch p.tok.Kind {
		case tokEOF:
			return nil, p.errorf(p.tok, "expected '}' to close region")
		case tokCaretID:
			blk, err := p.parseBlockLabel()
			if err != nil {
				return nil, err
			}
			if err := region.AppendBlock(blk); err != nil {
				return nil, err
			}
			current = blk
		default:
			if _, err := p.parseOperation(current); err != nil {
				return nil, err
			}
		}
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.popLabels(); err != nil {
		return nil, err
	}
	return region, nil
}

// block_label = caret_id ['(' value_id ':' type {',' value_id ':' type} ')'] ':'
func (p *parser) parseBlockLabel() (*ir.Block, error) {
	tok := p.tok
	ref := p.blockRef(tok)
	if ref.defined {
		return nil, p.errorf(tok, "redefinition of block ^%s", tok.Value)
	}
	ref.defined = true
	if err := p.next(); err != nil {
		return nil, err
	}

	if ok, err := p.accept(tokLParen); err != nil {
		return nil, err
	} else if ok {
		for !p.at(tokRParen) {
			nameTok, err := p.expect(tokValueID)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokColon); err != nil {
				return nil, err
			}
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			if err := p.defineValue(nameTok, ref.block.AddArgument(t)); err != nil {
				return nil, err
			}
			if ok, err := p.accept(tokComma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	return ref.block, nil
}

// trailing_loc = 'loc' '(' (string [':' integer ':' integer] | 'unknown') ')'
func (p *parser) parseTrailingLoc() (ir.Location, bool, error) {
	if !p.atKeyword("loc") {
		return ir.Location{}, false, nil
	}
	if err := p.next(); err != nil {
		return ir.Location{}, false, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return ir.Location{}, false, err
	}

	var loc ir.Location
	switch {
	case p.atKeyword("unknown"):
		loc = ir.UnknownLoc()
		if err := p.next(); err != nil {
			return loc, false, err
		}
	case p.at(tokString):
		name := p.tok.Value
		if err := p.next(); err != nil {
			return loc, false, err
		}
		loc = ir.NameLoc(name)
		if ok, err := p.accept(tokColon); err != nil {
			return loc, false, err
		} else if ok {
			line, err := p.parseInt()
			if err != nil {
				return loc, false, err
			}
			if _, err := p.expect(tokColon); err != nil {
				return loc, false, err
			}
			col, err := p.parseInt()
			if err != nil {
				return loc, false, err
			}
			loc = ir.FileLineColLoc(name, int(line), int(col))
		}
	default:
		return loc, false, p.errorf(p.tok, "expected location, found %s", p.tok)
	}

	if _, err := p.expect(tokRParen); err != nil {
		return loc, false, err
	}
	return loc, true, nil
}

func (p *parser) parseInt() (int64, error) {
	tok, err := p.expect(tokInteger)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(tok.Value, 10, 64)
		if uerr != nil {
			return 0, p.errorf(tok, "integer %s does not fit in 64 bits", tok.Value)
		}
		v = int64(u)
	}
	return v, nil
}

// -----------------------------------------------------------------------------

// type = 'i' width | 'index' | 'none' | function_type
func (p *parser) parseType() (ir.Type, error) {
	tok := p.tok
	switch tok.Kind {
	case tokLParen:
		inputs, results, err := p.parseFunctionSignature()
		if err != nil {
			return ir.Type{}, err
		}
		t, err := p.ctx.FunctionType(inputs, results)
		if err != nil {
			return ir.Type{}, p.errorf(tok, "%v", err)
		}
		return t, nil
	case tokBareIdent:
		var t ir.Type
		switch {
		case tok.Value == "index":
			t = p.ctx.IndexType()
		case tok.Value == "none":
			t = p.ctx.NoneType()
		case strings.HasPrefix(tok.Value, "i"):
			width, err := strconv.ParseUint(tok.Value[1:], 10, 32)
			if err != nil {
				return ir.Type{}, p.errorf(tok, "expected type, found %s", tok)
			}
			if !ir.ValidIntegerWidth(uint(width)) {
				return ir.Type{}, p.errorf(tok, "integer width %d is outside [1, %d]", width, ir.MaxIntegerWidth)
			}
			t = p.ctx.IntegerType(uint(width))
		default:
			return ir.Type{}, p.errorf(tok, "expected type, found %s", tok)
		}
		return t, p.next()
	}
	return ir.Type{}, p.errorf(tok, "expected type, found %s", tok)
}

// parseTypeList reads type {',' type}.
func (p *parser) parseTypeList() ([]ir.Type, error) {
	var types []ir.Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
		ok, err := p.accept(tokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			return types, nil
		}
	}
}

// parseParenTypeList reads '(' [type {',' type}] ')'.
func (p *parser) parseParenTypeList() ([]ir.Type, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if ok, err := p.accept(tokRParen); err != nil || ok {
		return nil, err
	}
	types, err := p.parseTypeList()
	if err != nil {
		return nil, err
	}
	_, err = p.expect(tokRParen)
	return types, err
}

// function_type = '(' [type {',' type}] ')' '->' (type | '(' [type {',' type}] ')')
func (p *parser) parseFunctionSignature() ([]ir.Type, []ir.Type, error) {
	inputs, err := p.parseParenTypeList()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(tokArrow); err != nil {
		return nil, nil, err
	}
	results, err := p.parseResultTypes()
	return inputs, results, err
}

// parseResultTypes reads a single type or a parenthesized list. A
// parenthesized list followed by '->' is a single function type.
func (p *parser) parseResultTypes() ([]ir.Type, error) {
	if !p.at(tokLParen) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return []ir.Type{t}, nil
	}
	start := p.tok
	types, err := p.parseParenTypeList()
	if err != nil {
		return nil, err
	}
	if !p.at(tokArrow) {
		return types, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	results, err := p.parseResultTypes()
	if err != nil {
		return nil, err
	}
	t, err := p.ctx.FunctionType(types, results)
	if err != nil {
		return nil, p.errorf(start, "%v", err)
	}
	return []ir.Type{t}, nil
}

// -----------------------------------------------------------------------------

// attr_dict = '{' [attr_entry {',' attr_entry}] '}'
// attr_entry = (bare_id | string) ['=' attr_value]
func (p *parser) parseAttrDict() ([]ir.NamedAttribute, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var attrs []ir.NamedAttribute
	for !p.at(tokRBrace) {
		tok := p.tok
		if tok.Kind != tokBareIdent && tok.Kind != tokString {
			return nil, p.errorf(tok, "expected attribute name, found %s", tok)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		if slices.ContainsFunc(attrs, func(a ir.NamedAttribute) bool { return a.Name == tok.Value }) {
			return nil, p.errorf(tok, "duplicate attribute %q", tok.Value)
		}

		value := p.ctx.UnitAttr()
		if ok, err := p.accept(tokEqual); err != nil {
			return nil, err
		} else if ok {
			if value, err = p.parseAttrValue(); err != nil {
				return nil, err
			}
		}
		attrs = append(attrs, ir.NamedAttribute{Name: tok.Value, Value: value})

		if ok, err := p.accept(tokComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	return attrs, nil
}

// attr_value = string | integer [':' type] | 'true' | 'false' | 'unit'
//
//	| symbol | type
func (p *parser) parseAttrValue() (ir.Attribute, error) {
	tok := p.tok
	switch tok.Kind {
	case tokString:
		return p.ctx.StringAttr(tok.Value), p.next()
	case tokSymbolID:
		return p.ctx.SymbolRefAttr(tok.Value), p.next()
	case tokInteger:
		v, err := p.parseInt()
		if err != nil {
			return ir.Attribute{}, err
		}
		t := p.ctx.IntegerType(64)
		if ok, err := p.accept(tokColon); err != nil {
			return ir.Attribute{}, err
		} else if ok {
			if t, err = p.parseType(); err != nil {
				return ir.Attribute{}, err
			}
		}
		a, err := p.ctx.IntegerAttr(t, v)
		if err != nil {
			return ir.Attribute{}, p.errorf(tok, "%v", err)
		}
		return a, nil
	case tokBareIdent:
		switch tok.Value {
		case "true", "false":
			return p.ctx.BoolAttr(tok.Value == "true"), p.next()
		case "unit":
			return p.ctx.UnitAttr(), p.next()
		}
	}

	t, err := p.parseType()
	if err != nil {
		return ir.Attribute{}, p.errorf(tok, "expected attribute value, found %s", tok)
	}
	a, err := p.ctx.TypeAttr(t)
	if err != nil {
		return ir.Attribute{}, p.errorf(tok, "%v", err)
	}
	return a, nil
}

// -----------------------------------------------------------------------------

// parseCustomOperation dispatches on the bare operation name.
func (p *parser) parseCustomOperation() (*ir.Operation, error) {
	tok := p.tok
	name := tok.Value
	switch {
	case name == "module":
		m, err := p.parseModule()
		if err != nil {
			return nil, err
		}
		return m.Operation(), nil
	case name == fn.FuncOp:
		return p.parseFunc()
	case name == "return" || name == fn.ReturnOp:
		return p.parseReturn(fn.ReturnOp)
	case name == llvm.ReturnOp:
		return p.parseReturn(llvm.ReturnOp)
	case name == "call" || name == fn.CallOp:
		return p.parseCall()
	case name == arith.ConstantOp:
		return p.parseConstant()
	case name == arith.CmpIOp:
		return p.parseCmpI()
	case slices.Contains(arith.BinaryOps, name) || slices.Contains(llvm.BinaryOps, name):
		return p.parseBinary(name)
	}
	return nil, p.errorf(tok, "custom syntax for '%s' is not supported; use the generic form \"%s\"(...)", name, name)
}

// func = 'func.func' symbol '(' [arg {',' arg}] ')' ['->' result_types]
//
//	['attributes' attr_dict] [region]
//
// arg = value_id ':' type | type
func (p *parser) parseFunc() (*ir.Operation, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.atKeyword("private") || p.atKeyword("public") {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	symTok, err := p.expect(tokSymbolID)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var (
		argNames []token
		inputs   []ir.Type
		named    = p.at(tokValueID)
	)
	for !p.at(tokRParen) {
		if named {
			nameTok, err := p.expect(tokValueID)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokColon); err != nil {
				return nil, err
			}
			argNames = append(argNames, nameTok)
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, t)
		if ok, err := p.accept(tokComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	var results []ir.Type
	if ok, err := p.accept(tokArrow); err != nil {
		return nil, err
	} else if ok {
		if results, err = p.parseResultTypes(); err != nil {
			return nil, err
		}
	}
	fnType, err := p.ctx.FunctionType(inputs, results)
	if err != nil {
		return nil, p.errorf(symTok, "%v", err)
	}

	var extra []ir.NamedAttribute
	if p.atKeyword("attributes") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if extra, err = p.parseAttrDict(); err != nil {
			return nil, err
		}
	}

	body := ir.NewRegion()
	if p.at(tokLBrace) {
		if len(inputs) > 0 && !named {
			return nil, p.errorf(p.tok, "function body requires named arguments")
		}
		p.pushFrame()
		entry := ir.NewBlock(inputs...)
		for i, nameTok := range argNames {
			if err := p.defineValue(nameTok, entry.MustArgument(i)); err != nil {
				return nil, err
			}
		}
		if body, err = p.parseRegion(entry); err != nil {
			return nil, err
		}
		if err := p.popFrame(); err != nil {
			return nil, err
		}
	} else if named {
		return nil, p.errorf(p.tok, "expected function body after @%s", symTok.Value)
	}

	attrs, err := traits.FuncAttributes(p.ctx, symTok.Value, fnType, extra...)
	if err != nil {
		return nil, p.errorf(symTok, "%v", err)
	}
	op, err := ir.NewOperation(p.ctx, ir.OperationState{
		Name:       fn.FuncOp,
		Location:   p.loc(start),
		Attributes: attrs,
		Regions:    []*ir.Region{body},
	})
	if err != nil {
		return nil, p.errorf(start, "%v", err)
	}
	return op, nil
}

// return = ('return' | 'func.return' | 'llvm.return') [value_id {',' value_id} ':' type {',' type}]
func (p *parser) parseReturn(kind string) (*ir.Operation, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	var operands []*ir.Value
	if p.at(tokValueID) {
		names, err := p.parseValueIDList(tokColon)
		if err != nil {
			return nil, err
		}
		colon, err := p.expect(tokColon)
		if err != nil {
			return nil, err
		}
		types, err := p.parseTypeList()
		if err != nil {
			return nil, err
		}
		if len(types) != len(names) {
			return nil, p.errorf(colon, "return lists %d value(s) and %d type(s)", len(names), len(types))
		}
		if operands, err = p.resolveValues(names, types); err != nil {
			return nil, err
		}
	}
	return p.build(start, ir.OperationState{Name: kind, Operands: operands})
}

// call = ('call' | 'func.call') symbol '(' [value_id {',' value_id}] ')' ':' function_type
func (p *parser) parseCall() (*ir.Operation, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	callee, err := p.expect(tokSymbolID)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	names, err := p.parseValueIDList(tokRParen)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	colon, err := p.expect(tokColon)
	if err != nil {
		return nil, err
	}
	inputs, results, err := p.parseFunctionSignature()
	if err != nil {
		return nil, err
	}
	if len(inputs) != len(names) {
		return nil, p.errorf(colon, "call passes %d argument(s) but its type lists %d", len(names), len(inputs))
	}
	args, err := p.resolveValues(names, inputs)
	if err != nil {
		return nil, err
	}
	return p.build(start, ir.OperationState{
		Name:        fn.CallOp,
		Operands:    args,
		ResultTypes: results,
		Attributes:  []ir.NamedAttribute{{Name: traits.CalleeAttr, Value: p.ctx.SymbolRefAttr(callee.Value)}},
	})
}

// constant = 'arith.constant' (integer | 'true' | 'false') ':' type
func (p *parser) parseConstant() (*ir.Operation, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	valueTok := p.tok
	var v int64
	switch {
	case p.atKeyword("true"), p.atKeyword("false"):
		if p.tok.Value == "true" {
			v = 1
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	default:
		var err error
		if v, err = p.parseInt(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	a, err := p.ctx.IntegerAttr(t, v)
	if err != nil {
		return nil, p.errorf(valueTok, "%v", err)
	}
	return p.build(start, ir.OperationState{
		Name:        arith.ConstantOp,
		ResultTypes: []ir.Type{t},
		Attributes:  []ir.NamedAttribute{{Name: traits.ValueAttr, Value: a}},
	})
}

// cmpi = 'arith.cmpi' predicate ',' value_id ',' value_id ':' type
func (p *parser) parseCmpI() (*ir.Operation, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	predTok := p.tok
	if predTok.Kind != tokBareIdent || !traits.IsPredicate(predTok.Value) {
		return nil, p.errorf(predTok, "expected comparison predicate, found %s", predTok)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma); err != nil {
		return nil, err
	}
	operands, err := p.parseSameTypeOperands(2)
	if err != nil {
		return nil, err
	}
	return p.build(start, ir.OperationState{
		Name:        arith.CmpIOp,
		Operands:    operands,
		ResultTypes: []ir.Type{p.ctx.IntegerType(1)},
		Attributes:  []ir.NamedAttribute{{Name: traits.PredicateAttr, Value: p.ctx.StringAttr(predTok.Value)}},
	})
}

// binary = name value_id ',' value_id ':' type
func (p *parser) parseBinary(name string) (*ir.Operation, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	operands, err := p.parseSameTypeOperands(2)
	if err != nil {
		return nil, err
	}
	return p.build(start, ir.OperationState{
		Name:        name,
		Operands:    operands,
		ResultTypes: []ir.Type{operands[0].Type()},
	})
}

// parseSameTypeOperands reads n comma separated values followed by ':' type.
func (p *parser) parseSameTypeOperands(n int) ([]*ir.Value, error) {
	names, err := p.parseValueIDList(tokColon)
	if err != nil {
		return nil, err
	}
	if len(names) != n {
		return nil, p.errorf(p.tok, "expected %d operands, found %d", n, len(names))
	}
	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	types := make([]ir.Type, n)
	for i := range types {
		types[i] = t
	}
	return p.resolveValues(names, types)
}

func (p *parser) build(start token, st ir.OperationState) (*ir.Operation, error) {
	st.Location = p.loc(start)
	op, err := ir.NewOperation(p.ctx, st)
	if err != nil {
		return nil, p.errorf(start, "%v", err)
	}
	return op, nil
}
