package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/irkit/internal/ir"
)

// marshalInts converts invocation arguments or results to canonical JSON
// TEXT for storage.
func marshalInts(vals []int64) (string, error) {
	elems := make([]any, len(vals))
	for i, v := range vals {
		elems[i] = v
	}
	data, err := ir.MarshalCanonical(elems)
	if err != nil {
		return "", fmt.Errorf("marshal ints: %w", err)
	}
	return string(data), nil
}

// unmarshalInts parses a JSON array TEXT column. Integers decode exactly
// over the full int64 range.
func unmarshalInts(data string) ([]int64, error) {
	if data == "" || data == "[]" {
		return []int64{}, nil
	}
	var vals []int64
	if err := json.Unmarshal([]byte(data), &vals); err != nil {
		return nil, fmt.Errorf("unmarshal ints: %w", err)
	}
	return vals, nil
}
