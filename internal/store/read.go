package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadArtifact retrieves an artifact by fingerprint.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadArtifact(ctx context.Context, fingerprint string) (Artifact, error) {
	var a Artifact
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, source, lowered, llvm_ir, seq
		FROM artifacts
		WHERE fingerprint = ?
	`, fingerprint).Scan(&a.Fingerprint, &a.Source, &a.Lowered, &a.LLVMIR, &a.Seq)
	if err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// ReadAllArtifacts returns every artifact ordered by seq.
func (s *Store) ReadAllArtifacts(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, source, lowered, llvm_ir, seq
		FROM artifacts
		ORDER BY seq ASC, fingerprint COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []Artifact{}
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Fingerprint, &a.Source, &a.Lowered, &a.LLVMIR, &a.Seq); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}

// ReadInvocation retrieves a single invocation by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInvocation(ctx context.Context, id string) (Invocation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, fingerprint, function, args, results, error, seq
		FROM invocations
		WHERE id = ?
	`, id)
	return scanInvocation(row)
}

// ReadRun returns the invocations recorded under a run ID.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the run has no records.
func (s *Store) ReadRun(ctx context.Context, runID string) ([]Invocation, error) {
	return s.queryInvocations(ctx, `
		SELECT id, run_id, fingerprint, function, args, results, error, seq
		FROM invocations
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
}

// ReadFunctionHistory returns every recorded call of one function of an
// artifact, across runs.
func (s *Store) ReadFunctionHistory(ctx context.Context, fingerprint, function string) ([]Invocation, error) {
	return s.queryInvocations(ctx, `
		SELECT id, run_id, fingerprint, function, args, results, error, seq
		FROM invocations
		WHERE fingerprint = ? AND function = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, fingerprint, function)
}

// ReadAllInvocations returns all invocations in the store.
func (s *Store) ReadAllInvocations(ctx context.Context) ([]Invocation, error) {
	return s.queryInvocations(ctx, `
		SELECT id, run_id, fingerprint, function, args, results, error, seq
		FROM invocations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

func (s *Store) queryInvocations(ctx context.Context, query string, args ...any) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invocations, nil
}

// ListRuns returns all distinct run IDs ordered by their first seq.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM invocations
		GROUP BY run_id
		ORDER BY MIN(seq) ASC, run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		runs = append(runs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetLastSeq returns the highest seq number used in the store.
// Used to resume the logical clock when a log is reopened.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(seq), 0) FROM artifacts),
			(SELECT COALESCE(MAX(seq), 0) FROM invocations)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (Invocation, error) {
	var (
		inv         Invocation
		argsJSON    string
		resultsJSON string
	)
	err := row.Scan(
		&inv.ID,
		&inv.RunID,
		&inv.Fingerprint,
		&inv.Function,
		&argsJSON,
		&resultsJSON,
		&inv.Error,
		&inv.Seq,
	)
	if err == sql.ErrNoRows {
		return Invocation{}, err
	}
	if err != nil {
		return Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}

	if inv.Args, err = unmarshalInts(argsJSON); err != nil {
		return Invocation{}, fmt.Errorf("scan invocation %s: %w", inv.ID, err)
	}
	if inv.Results, err = unmarshalInts(resultsJSON); err != nil {
		return Invocation{}, fmt.Errorf("scan invocation %s: %w", inv.ID, err)
	}
	return inv, nil
}
