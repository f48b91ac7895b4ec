package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/roach88/irkit/internal/asm"
	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/engine"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/pass"
	"github.com/roach88/irkit/internal/pipeline"
	"github.com/roach88/irkit/internal/store"
	"github.com/roach88/irkit/internal/testutil"
	"github.com/roach88/irkit/internal/verify"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	storePath string
}

// WithLogger sets the logger passed to every stage.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStorePath records the run in the SQLite database at path instead of
// a fresh in-memory one.
func WithStorePath(path string) Option {
	return func(c *config) { c.storePath = path }
}

// harness holds the state of one scenario run.
type harness struct {
	scenario *Scenario
	cfg      config
	irctx    *ir.Context
	result   *Result
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh context with a deterministic clock and run
// ID, so its trace is reproducible.
//
// Execution flow:
// 1. Parse the module
// 2. Verify it and compare against the expected outcome
// 3. Lower it with the scenario's pipeline
// 4. Compile it and record the artifact
// 5. Run the invocations, recording each in the run log
// 6. Read the trace back and evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		storePath: ":memory:",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{
		scenario: scenario,
		cfg:      cfg,
		irctx:    dialect.NewContext(),
		result:   NewResult(),
	}
	if err := h.run(context.Background()); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	return h.result, nil
}

func (h *harness) run(ctx context.Context) error {
	src, filename, err := h.source()
	if err != nil {
		return err
	}
	m, err := asm.Parse(h.irctx, src, filename, asm.WithLogger(h.cfg.logger))
	if err != nil {
		return fmt.Errorf("parse module: %w", err)
	}

	if !h.checkVerify(m) {
		return nil
	}

	spec, err := h.pipeline()
	if err != nil {
		return err
	}
	pm, err := spec.Build(h.irctx, pass.WithLogger(h.cfg.logger))
	if err != nil {
		return err
	}
	if err := pm.Run(ctx, m); err != nil {
		h.result.AddError(fmt.Sprintf("lowering failed: %v", err))
		return nil
	}
	h.result.Lowered = asm.Print(m.Operation())

	optLevel := max(h.scenario.OptLevel, spec.OptLevel)
	art, err := engine.Compile(m,
		engine.WithOptLevel(optLevel),
		engine.WithLogger(h.cfg.logger))
	if err != nil {
		h.result.AddError(fmt.Sprintf("compile failed: %v", err))
		return nil
	}
	h.result.Fingerprint = art.Fingerprint()

	st, err := store.Open(h.cfg.storePath,
		store.WithSeqSource(testutil.NewDeterministicClock()),
		store.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(h.scenario.RunID)),
		store.WithLogger(h.cfg.logger))
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer st.Close()

	if _, err := st.WriteArtifact(ctx, store.Artifact{
		Fingerprint: art.Fingerprint(),
		Source:      src,
		Lowered:     h.result.Lowered,
		LLVMIR:      art.LLVMIR(),
	}); err != nil {
		return err
	}

	runID := st.NewRunID()
	for i, step := range h.scenario.Invocations {
		results, invErr := art.Invoke(step.Function, step.Args...)
		h.checkInvocation(i, step, results, invErr)
		if _, err := st.RecordInvocation(ctx, runID, art.Fingerprint(), step.Function, step.Args, results, invErr); err != nil {
			return err
		}
	}

	invs, err := st.ReadRun(ctx, runID)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		h.result.Trace = append(h.result.Trace, TraceEvent{
			Function: inv.Function,
			Args:     inv.Args,
			Results:  inv.Results,
			Error:    inv.Error,
			Seq:      inv.Seq,
		})
	}

	actx := &AssertionContext{Module: m, Lowered: h.result.Lowered}
	for _, msg := range EvaluateAssertions(h.result, h.scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return nil
}

// source returns the module text and the filename locations refer to.
func (h *harness) source() (string, string, error) {
	if h.scenario.Source != "" {
		return h.scenario.Source, h.scenario.Name + ".mlir", nil
	}
	path := h.scenario.ModulePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read module: %w", err)
	}
	return string(data), path, nil
}

// checkVerify compares the verification outcome against the expectation
// and reports whether the scenario should continue.
func (h *harness) checkVerify(m *ir.Module) bool {
	errs := verify.Verify(m, verify.WithLogger(h.cfg.logger))
	h.result.Verified = len(errs) == 0

	want := h.scenario.Verify
	if want == nil {
		if !h.result.Verified {
			h.result.AddError((&verify.Failure{Errors: errs}).Error())
		}
		return h.result.Verified
	}

	if want.OK != h.result.Verified {
		if h.result.Verified {
			h.result.AddError("expected verification to fail, but the module verified")
		} else {
			h.result.AddError("expected module to verify: " + (&verify.Failure{Errors: errs}).Error())
		}
		return false
	}
	if want.Code != "" && !slices.ContainsFunc(errs, func(e verify.Error) bool { return e.Code == want.Code }) {
		h.result.AddError(fmt.Sprintf("expected verification error %s, got %v", want.Code, codes(errs)))
	}
	return h.result.Verified
}

func codes(errs []verify.Error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func (h *harness) pipeline() (*pipeline.Spec, error) {
	switch {
	case h.scenario.PipelineFile != "":
		return pipeline.LoadFile(h.scenario.resolve(h.scenario.PipelineFile))
	case len(h.scenario.Pipeline) > 0:
		spec := &pipeline.Spec{Verify: true}
		for _, name := range h.scenario.Pipeline {
			spec.Steps = append(spec.Steps, pipeline.Step{Pass: name})
		}
		return spec, nil
	default:
		return pipeline.Default(), nil
	}
}

func (h *harness) checkInvocation(i int, step InvocationStep, results []int64, err error) {
	prefix := fmt.Sprintf("invocations[%d] @%s", i, step.Function)
	switch {
	case step.Trap != nil:
		if !engine.IsTrap(err) {
			h.result.AddError(fmt.Sprintf("%s: expected trap, got results %v (err %v)", prefix, results, err))
		} else if !strings.Contains(err.Error(), *step.Trap) {
			h.result.AddError(fmt.Sprintf("%s: trap %q does not mention %q", prefix, err.Error(), *step.Trap))
		}
	case err != nil:
		h.result.AddError(fmt.Sprintf("%s: %v", prefix, err))
	case step.Expect != nil && !slices.Equal(step.Expect, results):
		h.result.AddError(fmt.Sprintf("%s%v: expected %v, got %v", prefix, step.Args, step.Expect, results))
	}
}
