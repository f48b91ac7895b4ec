// Package pipeline loads lowering pipelines described in CUE.
//
// A pipeline file lists passes by registered name. A step with a nested
// field runs on every operation of that kind instead of on the module;
// consecutive steps with the same nested kind share one nested manager.
//
//	pipeline: [
//		{pass: "convert-func-to-llvm"},
//		{pass: "convert-arith-to-llvm", nested: "llvm.func"},
//		{pass: "reconcile-unrealized-casts"},
//	]
//	verify:    true
//	opt_level: 2
package pipeline

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/pass"
)

// Step is one pipeline entry.
type Step struct {
	Pass   string    `json:"pass" yaml:"pass"`
	Nested string    `json:"nested,omitempty" yaml:"nested,omitempty"`
	Pos    token.Pos `json:"-" yaml:"-"`
}

// Spec is a loaded pipeline.
type Spec struct {
	Steps    []Step `json:"pipeline"`
	Verify   bool   `json:"verify"`
	OptLevel int    `json:"opt_level"`
}

// Error reports a malformed pipeline description.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the pipeline that lowers func, arith and cf to llvm.
func Default() *Spec {
	return &Spec{
		Steps: []Step{
			{Pass: pass.FuncToLLVMName},
			{Pass: pass.ArithToLLVMName},
			{Pass: pass.CFToLLVMName},
			{Pass: pass.ReconcileCastsName},
		},
		Verify: true,
	}
}

// LoadFile reads and compiles a CUE pipeline file.
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	return Parse(data, path)
}

// Parse compiles CUE source into a pipeline spec.
func Parse(src []byte, filename string) (*Spec, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return Compile(v)
}

// Compile extracts a pipeline spec from a CUE value holding the
// pipeline, verify and opt_level fields.
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	list := v.LookupPath(cue.ParsePath("pipeline"))
	if !list.Exists() {
		return nil, &Error{Field: "pipeline", Message: "pipeline is required", Pos: v.Pos()}
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{Verify: true}
	for i := 0; iter.Next(); i++ {
		step, err := compileStep(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		spec.Steps = append(spec.Steps, step)
	}
	if len(spec.Steps) == 0 {
		return nil, &Error{Field: "pipeline", Message: "at least one pass is required", Pos: list.Pos()}
	}

	if vv := v.LookupPath(cue.ParsePath("verify")); vv.Exists() {
		if spec.Verify, err = vv.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if ov := v.LookupPath(cue.ParsePath("opt_level")); ov.Exists() {
		n, err := ov.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 || n > 3 {
			return nil, &Error{Field: "opt_level", Message: fmt.Sprintf("opt_level must be between 0 and 3, got %d", n), Pos: ov.Pos()}
		}
		spec.OptLevel = int(n)
	}
	return spec, nil
}

func compileStep(v cue.Value, i int) (Step, error) {
	field := fmt.Sprintf("pipeline[%d]", i)
	step := Step{Pos: v.Pos()}

	// A bare string is shorthand for {pass: name}.
	if name, err := v.String(); err == nil {
		step.Pass = name
		return step, checkPass(step, field)
	}

	pv := v.LookupPath(cue.ParsePath("pass"))
	if !pv.Exists() {
		return step, &Error{Field: field + ".pass", Message: "pass is required", Pos: v.Pos()}
	}
	name, err := pv.String()
	if err != nil {
		return step, formatCUEError(err)
	}
	step.Pass = name

	if nv := v.LookupPath(cue.ParsePath("nested")); nv.Exists() {
		kind, err := nv.String()
		if err != nil {
			return step, formatCUEError(err)
		}
		if ir.DialectOf(kind) == "" {
			return step, &Error{Field: field + ".nested", Message: fmt.Sprintf("%q is not a dialect-qualified operation name", kind), Pos: nv.Pos()}
		}
		step.Nested = kind
	}
	return step, checkPass(step, field)
}

func checkPass(step Step, field string) error {
	if _, ok := pass.Lookup(step.Pass); !ok {
		return &Error{Field: field + ".pass", Message: fmt.Sprintf("unknown pass %q", step.Pass), Pos: step.Pos}
	}
	return nil
}

// Build creates a pass manager running the pipeline's steps in order.
func (s *Spec) Build(irctx *ir.Context, opts ...pass.Option) (*pass.Manager, error) {
	opts = append([]pass.Option{pass.WithVerifier(s.Verify)}, opts...)
	pm := pass.NewManager(irctx, opts...)

	var nested *pass.Manager
	for i, step := range s.Steps {
		p, ok := pass.Lookup(step.Pass)
		if !ok {
			return nil, &Error{Field: fmt.Sprintf("pipeline[%d].pass", i), Message: fmt.Sprintf("unknown pass %q", step.Pass), Pos: step.Pos}
		}
		switch {
		case step.Nested == "":
			nested = nil
			pm.AddPass(p)
		case nested != nil && nested.Anchor() == step.Nested:
			nested.AddPass(p)
		default:
			nested = pm.NestedUnder(step.Nested)
			nested.AddPass(p)
		}
	}
	return pm, nil
}

// Names lists the pass names of the pipeline, nested ones as kind/pass.
func (s *Spec) Names() []string {
	names := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		if step.Nested != "" {
			names[i] = step.Nested + "/" + step.Pass
		} else {
			names[i] = step.Pass
		}
	}
	return names
}

// formatCUEError keeps the position of the first CUE error.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Field: "cue", Message: err.Error()}
	}
	first := errs[0]
	perr := &Error{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		perr.Pos = positions[0]
	}
	return perr
}
