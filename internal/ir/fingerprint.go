package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// canonical form to change without colliding with old fingerprints.
const (
	DomainModule    = "irkit/module/v1"
	DomainOperation = "irkit/operation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the structural hash of a module. Modules that differ
// only in source locations or value names share a fingerprint.
func Fingerprint(m *Module) (string, error) {
	data, err := CanonicalForm(m.Operation())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainModule, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests.
func MustFingerprint(m *Module) string {
	fp, err := Fingerprint(m)
	if err != nil {
		panic(err)
	}
	return fp
}

// OperationFingerprint returns the structural hash of a single operation
// tree.
func OperationFingerprint(op *Operation) (string, error) {
	data, err := CanonicalForm(op)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", op.Name(), err)
	}
	return hashWithDomain(DomainOperation, data), nil
}

// CanonicalForm renders the operation tree rooted at op as canonical JSON.
// Values are numbered in definition order; values defined outside the tree
// are written as -1.
func CanonicalForm(op *Operation) ([]byte, error) {
	ids := make(map[*Value]int)
	Walk(op, func(o *Operation) WalkResult {
		for _, r := range o.regions {
			for _, b := range r.blocks {
				for _, a := range b.args {
					ids[a] = len(ids)
				}
				for _, nested := range b.ops {
					for _, res := range nested.results {
						ids[res] = len(ids)
					}
				}
			}
		}
		return WalkAdvance
	})
	for _, res := range op.results {
		if _, ok := ids[res]; !ok {
			ids[res] = len(ids)
		}
	}

	return MarshalCanonical(canonicalOp(op, ids))
}

func valueID(ids map[*Value]int, v *Value) int {
	if id, ok := ids[v]; ok {
		return id
	}
	return -1
}

func canonicalOp(op *Operation, ids map[*Value]int) map[string]any {
	operands := make([]any, op.numOperands)
	for i, v := range op.operands[:op.numOperands] {
		operands[i] = valueID(ids, v)
	}

	results := make([]any, len(op.results))
	for i, r := range op.results {
		results[i] = map[string]any{"id": valueID(ids, r), "type": r.typ.String()}
	}

	attrs := make(map[string]any, len(op.attrs))
	for _, a := range op.attrs {
		attrs[a.Name] = a.Value.String()
	}

	successors := make([]any, len(op.successors))
	for i, s := range op.successors {
		succOperands := make([]any, s.count)
		for j, v := range op.operands[s.start : s.start+s.count] {
			succOperands[j] = valueID(ids, v)
		}
		index := -1
		if r := op.ParentRegion(); r != nil {
			index = r.BlockIndex(s.block)
		}
		successors[i] = map[string]any{"block": index, "operands": succOperands}
	}

	regions := make([]any, len(op.regions))
	for i, r := range op.regions {
		blocks := make([]any, len(r.blocks))
		for j, b := range r.blocks {
			args := make([]any, len(b.args))
			for k, a := range b.args {
				args[k] = map[string]any{"id": valueID(ids, a), "type": a.typ.String()}
			}
			ops := make([]any, len(b.ops))
			for k, nested := range b.ops {
				ops[k] = canonicalOp(nested, ids)
			}
			blocks[j] = map[string]any{"args": args, "ops": ops}
		}
		regions[i] = blocks
	}

	return map[string]any{
		"name":       op.name,
		"operands":   operands,
		"results":    results,
		"attrs":      attrs,
		"successors": successors,
		"regions":    regions,
	}
}
