package ir

import "fmt"

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
	SeverityRemark
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	case SeverityRemark:
		return "remark"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is a message about the IR reported to the embedding driver.
// Whether a diagnostic is fatal is the driver's decision.
type Diagnostic struct {
	Severity Severity
	Message  string
	Location Location
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location.Short(), d.Severity, d.Message)
}

// DiagnosticHandler receives diagnostics. A nil handler drops them.
type DiagnosticHandler func(Diagnostic)

// Emit delivers d to h if h is set.
func (h DiagnosticHandler) Emit(d Diagnostic) {
	if h != nil {
		h(d)
	}
}

// Errorf emits an error diagnostic at loc.
func (h DiagnosticHandler) Errorf(loc Location, format string, args ...any) {
	h.Emit(Diagnostic{Severity: SeverityError, Message: fmt.Sprintf(format, args...), Location: loc})
}
