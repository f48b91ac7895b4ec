// Package pass runs ordered transformations over IR modules.
//
// A Manager holds a list of passes and nested managers. Passes run in the
// order they were added; a nested manager created with NestedUnder runs its
// own entries on every operation of one kind below the anchor. A failing
// pass stops the run and the module is left as the passes before it made
// it. There is no rollback.
package pass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/verify"
)

// Pass transforms the operation it is anchored on and everything nested
// in it.
type Pass interface {
	Name() string
	Run(ctx context.Context, op *ir.Operation) error
}

// Failure reports the pass that stopped a pipeline run.
type Failure struct {
	Pass   string `json:"pass"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pass %s failed: %s", f.Pass, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsFailure reports whether err carries a *Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Option configures a Manager.
type Option func(*config)

type config struct {
	verify bool
	logger *slog.Logger
}

// WithVerifier controls verification of the module before the run and after
// every top-level entry. It is on by default; an invalid input is refused
// without running any pass.
func WithVerifier(on bool) Option {
	return func(c *config) { c.verify = on }
}

// WithLogger sets the logger for per-pass debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

type entry struct {
	pass   Pass
	nested *Manager
}

func (e entry) name() string {
	if e.pass != nil {
		return e.pass.Name()
	}
	return "nested(" + e.nested.anchor + ")"
}

// Manager is an ordered pipeline of passes anchored on one operation kind.
type Manager struct {
	irctx   *ir.Context
	anchor  string
	cfg     *config
	entries []entry
}

// NewManager creates a pipeline anchored on builtin.module. The module is
// verified unless WithVerifier(false) is given.
func NewManager(irctx *ir.Context, opts ...Option) *Manager {
	cfg := &config{verify: true, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Manager{irctx: irctx, anchor: ir.ModuleOp, cfg: cfg}
}

// Anchor returns the operation kind the manager runs on.
func (m *Manager) Anchor() string { return m.anchor }

// AddPass appends p to the pipeline.
func (m *Manager) AddPass(p Pass) {
	m.entries = append(m.entries, entry{pass: p})
}

// NestedUnder appends a nested pipeline that runs on every operation of
// the given kind below the anchor, and returns it for adding passes.
func (m *Manager) NestedUnder(kind string) *Manager {
	child := &Manager{irctx: m.irctx, anchor: kind, cfg: m.cfg}
	m.entries = append(m.entries, entry{nested: child})
	return child
}

// Passes lists the pipeline entries, nested ones as nested(kind).
func (m *Manager) Passes() []string {
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.name()
	}
	return names
}

// Run executes the pipeline on mod while holding its exclusive lock. It
// returns ir.ErrModuleBusy when another run holds the lock and *Failure
// when a pass or the verifier fails.
func (m *Manager) Run(ctx context.Context, mod *ir.Module) error {
	unlock, err := mod.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	if mod.Context() != m.irctx {
		return &ir.ContextError{Op: ir.ModuleOp, Message: "module belongs to a different context than the pass manager"}
	}

	if m.cfg.verify {
		if err := verify.Check(mod); err != nil {
			return &Failure{Pass: "verify", Reason: "input module failed verification", Err: err}
		}
	}

	start := time.Now()
	if err := m.runEntries(ctx, mod.Operation(), mod); err != nil {
		m.cfg.logger.Debug("pipeline failed", "error", err, "duration", time.Since(start))
		return err
	}
	m.cfg.logger.Debug("pipeline finished", "entries", len(m.entries), "duration", time.Since(start))
	return nil
}

// runEntries runs every entry on op. mod is non-nil only at the root, where
// verification after each entry happens.
func (m *Manager) runEntries(ctx context.Context, op *ir.Operation, mod *ir.Module) error {
	for _, e := range m.entries {
		if err := ctx.Err(); err != nil {
			return &Failure{Pass: e.name(), Reason: "cancelled", Err: err}
		}

		if e.pass != nil {
			if err := m.runPass(ctx, e.pass, op); err != nil {
				return err
			}
		} else {
			for _, target := range collect(op, e.nested.anchor) {
				if err := e.nested.runEntries(ctx, target, nil); err != nil {
					return err
				}
			}
		}

		if mod != nil && m.cfg.verify {
			if err := verify.Check(mod); err != nil {
				return &Failure{Pass: e.name(), Reason: "produced invalid IR", Err: err}
			}
		}
	}
	return nil
}

func (m *Manager) runPass(ctx context.Context, p Pass, op *ir.Operation) error {
	start := time.Now()
	err := p.Run(ctx, op)
	m.cfg.logger.Debug("ran pass",
		"pass", p.Name(),
		"anchor", op.Name(),
		"symbol", ir.SymbolName(op),
		"duration", time.Since(start),
		"ok", err == nil)
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return &Failure{Pass: p.Name(), Reason: err.Error(), Err: err}
}

// collect returns the operations of the given kind strictly below op, in
// program order, without descending into matches.
func collect(op *ir.Operation, kind string) []*ir.Operation {
	var out []*ir.Operation
	ir.Walk(op, func(o *ir.Operation) ir.WalkResult {
		if o == op {
			return ir.WalkAdvance
		}
		if o.Name() == kind {
			out = append(out, o)
			return ir.WalkSkip
		}
		return ir.WalkAdvance
	})
	return out
}
