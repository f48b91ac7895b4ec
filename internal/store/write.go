package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// WriteArtifact records a compiled module. A zero Seq is stamped from the
// store's SeqSource.
//
// Uses ON CONFLICT(fingerprint) DO NOTHING: recompiling a module that is
// already logged keeps the first row, which is returned.
func (s *Store) WriteArtifact(ctx context.Context, a Artifact) (Artifact, error) {
	if a.Fingerprint == "" {
		return Artifact{}, fmt.Errorf("write artifact: empty fingerprint")
	}
	if a.Seq == 0 {
		a.Seq = s.cfg.seq.Next()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts
		(fingerprint, source, lowered, llvm_ir, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`,
		a.Fingerprint,
		a.Source,
		a.Lowered,
		a.LLVMIR,
		a.Seq,
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	if n == 0 {
		return s.ReadArtifact(ctx, a.Fingerprint)
	}
	s.cfg.logger.Debug("artifact recorded",
		"fingerprint", a.Fingerprint,
		"seq", a.Seq)
	return a, nil
}

// RecordInvocation stamps an invocation with the next seq and an ID of the
// form run/seq, then writes it. invErr, when non-nil, is stored as the
// error message and results are dropped.
func (s *Store) RecordInvocation(ctx context.Context, runID, fingerprint, function string, args, results []int64, invErr error) (Invocation, error) {
	inv := Invocation{
		RunID:       runID,
		Fingerprint: fingerprint,
		Function:    function,
		Args:        args,
		Results:     results,
		Seq:         s.cfg.seq.Next(),
	}
	inv.ID = fmt.Sprintf("%s/%d", runID, inv.Seq)
	if invErr != nil {
		inv.Error = invErr.Error()
		inv.Results = nil
	}
	if err := s.WriteInvocation(ctx, inv); err != nil {
		return Invocation{}, err
	}
	return inv, nil
}

// WriteInvocation inserts an invocation record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// The artifact referenced by Fingerprint must exist (foreign key constraint).
func (s *Store) WriteInvocation(ctx context.Context, inv Invocation) error {
	if inv.ID == "" || inv.RunID == "" {
		return fmt.Errorf("write invocation: id and run id are required")
	}
	argsJSON, err := marshalInts(inv.Args)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	resultsJSON, err := marshalInts(inv.Results)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, run_id, fingerprint, function, args, results, error, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.RunID,
		inv.Fingerprint,
		inv.Function,
		argsJSON,
		resultsJSON,
		inv.Error,
		inv.Seq,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	s.cfg.logger.Debug("invocation recorded",
		"id", inv.ID,
		"function", inv.Function,
		"failed", inv.Failed())
	return nil
}

// HasArtifact reports whether a module with the fingerprint is logged.
func (s *Store) HasArtifact(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM artifacts WHERE fingerprint = ?
	`, fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has artifact: %w", err)
	}
	return true, nil
}
