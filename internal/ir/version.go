package ir

// Version constants for the IR and the toolkit.
const (
	// IRVersion is the version of the canonical IR form used by Fingerprint.
	IRVersion = "1"

	// ToolVersion is the irkit release version.
	ToolVersion = "0.1.0"
)
