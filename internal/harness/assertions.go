package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/irkit/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] @%s %v", i+1, event.Function, event.Args)
			if event.Error != "" {
				fmt.Fprintf(&buf, " error: %s\n", event.Error)
			} else {
				fmt.Fprintf(&buf, " -> %v\n", event.Results)
			}
		}
	}

	return buf.String()
}

// AssertionContext holds the lowered module assertions inspect.
type AssertionContext struct {
	Module  *ir.Module
	Lowered string
}

// assertTraceContains checks if the trace contains an invocation of the
// function whose args start with the assertion's args.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Function == a.Function && len(event.Args) >= len(a.Args) &&
			slices.Equal(event.Args[:len(a.Args)], a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("@%s with args %v", a.Function, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if functions are first invoked in the specified
// order. Intervening invocations are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Function]; !seen {
			positions[event.Function] = i + 1 // 1-indexed for readability
		}
	}

	for _, fn := range a.Functions {
		if positions[fn] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all functions present: %v", a.Functions),
				Actual:   fmt.Sprintf("missing function: %s", fn),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Functions); i++ {
		prev, curr := a.Functions[i-1], a.Functions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("functions in order: %v", a.Functions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the function is invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Function == a.Function {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d invocations of @%s", a.Count, a.Function),
			Actual:   fmt.Sprintf("%d invocations", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertLoweredContains(actx *AssertionContext, a Assertion) error {
	if strings.Contains(actx.Lowered, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLoweredContains,
		Expected: fmt.Sprintf("lowered module containing %q", a.Text),
		Actual:   "not found",
	}
}

// opCounts tallies operations below the module by name.
func opCounts(m *ir.Module) map[string]int {
	counts := make(map[string]int)
	for _, op := range ir.PreOrder(m.Operation()) {
		if op != m.Operation() {
			counts[op.Name()]++
		}
	}
	return counts
}

func assertOpCount(actx *AssertionContext, a Assertion) error {
	if got := opCounts(actx.Module)[a.Op]; got != a.Count {
		return &AssertionError{
			Type:     AssertOpCount,
			Expected: fmt.Sprintf("%d %s operations", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func assertDialects(actx *AssertionContext, a Assertion) error {
	var stray []string
	for name := range opCounts(actx.Module) {
		if !slices.Contains(a.Dialects, ir.DialectOf(name)) {
			stray = append(stray, name)
		}
	}
	if len(stray) == 0 {
		return nil
	}
	slices.Sort(stray)
	return &AssertionError{
		Type:     AssertDialects,
		Expected: fmt.Sprintf("only dialects %v", a.Dialects),
		Actual:   fmt.Sprintf("found %s", strings.Join(stray, ", ")),
	}
}

// EvaluateAssertions evaluates all assertions and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertLoweredContains:
			err = assertLoweredContains(actx, a)
		case AssertOpCount:
			err = assertOpCount(actx, a)
		case AssertDialects:
			err = assertDialects(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
