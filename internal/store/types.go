package store

// Artifact is a compiled module as recorded in the run log.
type Artifact struct {
	Fingerprint string `json:"fingerprint"`
	Source      string `json:"source"`
	Lowered     string `json:"lowered"`
	LLVMIR      string `json:"llvm_ir"`
	Seq         int64  `json:"seq"`
}

// Invocation is one packed call of a function in an artifact. Error holds
// the invocation error message; Results is empty when Error is set.
type Invocation struct {
	ID          string  `json:"id"`
	RunID       string  `json:"run_id"`
	Fingerprint string  `json:"fingerprint"`
	Function    string  `json:"function"`
	Args        []int64 `json:"args"`
	Results     []int64 `json:"results"`
	Error       string  `json:"error,omitempty"`
	Seq         int64   `json:"seq"`
}

// Failed reports whether the invocation ended in an error.
func (inv Invocation) Failed() bool {
	return inv.Error != ""
}
