package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/pass"
	"github.com/roach88/irkit/internal/testutil"
)

const nestedSrc = `
pipeline: [
	{pass: "convert-func-to-llvm"},
	{pass: "convert-arith-to-llvm", nested: "llvm.func"},
	{pass: "convert-cf-to-llvm", nested: "llvm.func"},
	"reconcile-unrealized-casts",
]
opt_level: 2
`

func TestParseNestedPipeline(t *testing.T) {
	spec, err := Parse([]byte(nestedSrc), "lower.cue")
	require.NoError(t, err)

	assert.True(t, spec.Verify)
	assert.Equal(t, 2, spec.OptLevel)
	assert.Equal(t, []string{
		"convert-func-to-llvm",
		"llvm.func/convert-arith-to-llvm",
		"llvm.func/convert-cf-to-llvm",
		"reconcile-unrealized-casts",
	}, spec.Names())

	pm, err := spec.Build(dialect.NewContext())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"convert-func-to-llvm",
		"nested(llvm.func)",
		"reconcile-unrealized-casts",
	}, pm.Passes())
}

func TestBuiltPipelineLowersModules(t *testing.T) {
	spec, err := Parse([]byte(nestedSrc), "lower.cue")
	require.NoError(t, err)

	for _, build := range []func(*ir.Context) (*ir.Module, error){
		testutil.AddIndexModule,
		testutil.MaxModule,
		testutil.SumToModule,
	} {
		irctx := dialect.NewContext()
		m, err := build(irctx)
		require.NoError(t, err)

		pm, err := spec.Build(irctx)
		require.NoError(t, err)
		require.NoError(t, pm.Run(context.Background(), m))

		for _, op := range ir.PreOrder(m.Operation()) {
			if op == m.Operation() {
				continue
			}
			assert.Equal(t, "llvm", op.Dialect(), "op %s survived lowering", op.Name())
		}
	}
}

func TestDefaultMatchesStandard(t *testing.T) {
	irctx := dialect.NewContext()
	pm, err := Default().Build(irctx)
	require.NoError(t, err)
	assert.Equal(t, pass.Standard(irctx).Passes(), pm.Passes())
	assert.Equal(t, 0, Default().OptLevel)
}

func TestSeparatedNestedStepsGetSeparateManagers(t *testing.T) {
	spec := &Spec{Steps: []Step{
		{Pass: pass.ArithToLLVMName, Nested: "func.func"},
		{Pass: pass.FuncToLLVMName},
		{Pass: pass.CFToLLVMName, Nested: "func.func"},
	}}
	pm, err := spec.Build(dialect.NewContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"nested(func.func)", "convert-func-to-llvm", "nested(func.func)"}, pm.Passes())
}

func TestVerifyFlagDisablesVerifier(t *testing.T) {
	spec, err := Parse([]byte(`pipeline: ["reconcile-unrealized-casts"], verify: false`), "p.cue")
	require.NoError(t, err)
	assert.False(t, spec.Verify)
}

func TestUnknownPassCarriesPosition(t *testing.T) {
	src := "pipeline: [\n\t{pass: \"convert-func-to-llvm\"},\n\t{pass: \"inline\"},\n]\n"
	_, err := Parse([]byte(src), "bad.cue")
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "pipeline[1].pass", perr.Field)
	assert.Contains(t, perr.Message, `unknown pass "inline"`)
	assert.Equal(t, 3, perr.Pos.Line())
	assert.Contains(t, err.Error(), "bad.cue:3:")
}

func TestBuildRejectsUnknownPass(t *testing.T) {
	spec := &Spec{Steps: []Step{{Pass: "nope"}}}
	_, err := spec.Build(dialect.NewContext())
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "pipeline[0].pass", perr.Field)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing pipeline", `verify: true`, "pipeline"},
		{"empty pipeline", `pipeline: []`, "pipeline"},
		{"missing pass", `pipeline: [{nested: "llvm.func"}]`, "pipeline[0].pass"},
		{"unqualified nested", `pipeline: [{pass: "convert-cf-to-llvm", nested: "func"}]`, "pipeline[0].nested"},
		{"opt level range", `pipeline: ["convert-cf-to-llvm"], opt_level: 7`, "opt_level"},
		{"syntax", `pipeline: [`, "cue"},
		{"wrong type", `pipeline: ["convert-cf-to-llvm"], verify: "yes"`, "cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "p.cue")
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lower.cue")
	require.NoError(t, os.WriteFile(path, []byte(nestedSrc), 0o644))

	spec, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, spec.Steps, 4)
	assert.Equal(t, path, spec.Steps[0].Pos.Filename())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
