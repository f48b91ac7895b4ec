package harness

// TraceEvent is one invocation as read back from the run log.
type TraceEvent struct {
	Function string  `json:"function"`
	Args     []int64 `json:"args"`
	Results  []int64 `json:"results,omitempty"`
	Error    string  `json:"error,omitempty"`
	Seq      int64   `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Verified reports whether the parsed module verified.
	Verified bool `json:"verified"`

	// Fingerprint of the lowered module; empty if the scenario stopped
	// before lowering.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Lowered is the printed module after the pipeline ran.
	Lowered string `json:"-"`

	// Trace contains all invocations in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
