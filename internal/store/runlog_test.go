package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/irkit/internal/asm"
	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/engine"
	"github.com/roach88/irkit/internal/pass"
	"github.com/roach88/irkit/internal/testutil"
)

// compiledAdd builds, lowers and compiles the add(i32) module and returns
// the artifact row describing it.
func compiledAdd(t *testing.T) (*engine.Artifact, Artifact) {
	t.Helper()
	irctx := dialect.NewContext()
	m, err := testutil.AddI32Module(irctx)
	require.NoError(t, err)
	source := asm.Print(m.Operation())

	require.NoError(t, pass.Standard(irctx).Run(context.Background(), m))
	art, err := engine.Compile(m)
	require.NoError(t, err)

	return art, Artifact{
		Fingerprint: art.Fingerprint(),
		Source:      source,
		Lowered:     asm.Print(m.Operation()),
		LLVMIR:      art.LLVMIR(),
	}
}

func TestWriteArtifactStampsSeq(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	s := createTestStore(t, WithSeqSource(clock))

	_, row := compiledAdd(t)
	written, err := s.WriteArtifact(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, int64(1), written.Seq)

	got, err := s.ReadArtifact(ctx, row.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, written, got)
	assert.Contains(t, got.Lowered, "llvm.func")
	assert.Contains(t, got.LLVMIR, "define i32 @add")
}

func TestWriteArtifactKeepsFirstRow(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithSeqSource(testutil.NewDeterministicClock()))

	_, row := compiledAdd(t)
	first, err := s.WriteArtifact(ctx, row)
	require.NoError(t, err)

	row.Source = "changed"
	second, err := s.WriteArtifact(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	all, err := s.ReadAllArtifacts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	ok, err := s.HasArtifact(ctx, row.Fingerprint)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasArtifact(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteArtifactRequiresFingerprint(t *testing.T) {
	s := createTestStore(t)
	_, err := s.WriteArtifact(context.Background(), Artifact{})
	assert.Error(t, err)
}

func TestRecordInvocations(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t,
		WithSeqSource(testutil.NewDeterministicClock()),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-a")))

	art, row := compiledAdd(t)
	_, err := s.WriteArtifact(ctx, row)
	require.NoError(t, err)

	run := s.NewRunID()
	assert.Equal(t, "run-a", run)

	results, invErr := art.Invoke("add", 42)
	inv, err := s.RecordInvocation(ctx, run, row.Fingerprint, "add", []int64{42}, results, invErr)
	require.NoError(t, err)
	assert.Equal(t, "run-a/2", inv.ID)

	_, invErr = art.Invoke("missing")
	require.Error(t, invErr)
	failed, err := s.RecordInvocation(ctx, run, row.Fingerprint, "missing", nil, nil, invErr)
	require.NoError(t, err)
	assert.True(t, failed.Failed())

	got, err := s.ReadRun(ctx, run)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int64{42}, got[0].Args)
	assert.Equal(t, []int64{84}, got[0].Results)
	assert.False(t, got[0].Failed())
	assert.Equal(t, "missing", got[1].Function)
	assert.Equal(t, []int64{}, got[1].Results)
	assert.Contains(t, got[1].Error, "no such function")

	history, err := s.ReadFunctionHistory(ctx, row.Fingerprint, "add")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWriteInvocationIdempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, row := compiledAdd(t)
	_, err := s.WriteArtifact(ctx, row)
	require.NoError(t, err)

	inv := Invocation{ID: "r/1", RunID: "r", Fingerprint: row.Fingerprint, Function: "add", Args: []int64{1}, Results: []int64{2}, Seq: 10}
	require.NoError(t, s.WriteInvocation(ctx, inv))
	require.NoError(t, s.WriteInvocation(ctx, inv))

	all, err := s.ReadAllInvocations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWriteInvocationForeignKey(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteInvocation(context.Background(), Invocation{ID: "r/1", RunID: "r", Fingerprint: "nope", Function: "f", Seq: 1})
	assert.Error(t, err)
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.ReadArtifact(ctx, "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	_, err = s.ReadInvocation(ctx, "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	runs, err := s.ReadRun(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestArgsRoundTripFullRange(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, row := compiledAdd(t)
	_, err := s.WriteArtifact(ctx, row)
	require.NoError(t, err)

	args := []int64{math.MinInt64, -1, 0, 1 << 53, math.MaxInt64}
	inv, err := s.RecordInvocation(ctx, "r", row.Fingerprint, "add", args, nil, nil)
	require.NoError(t, err)

	got, err := s.ReadInvocation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, args, got.Args)
}

func TestReopenResumesClock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	_, row := compiledAdd(t)

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.WriteArtifact(ctx, row)
	require.NoError(t, err)
	_, err = s1.RecordInvocation(ctx, "first", row.Fingerprint, "add", []int64{1}, []int64{2}, nil)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	last, err := s2.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)

	inv, err := s2.RecordInvocation(ctx, "second", row.Fingerprint, "add", []int64{2}, []int64{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), inv.Seq)

	runs, err := s2.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, runs)
}
