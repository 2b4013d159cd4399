package model

// Version constants for persisted records.
const (
	// RecordSchemaVersion is stamped on every record the store writes.
	// Bump it when a persisted shape gains a field that readers must know
	// about; optional fields do not require a bump.
	RecordSchemaVersion = 1

	// Version is the offpos client version reported by the CLI.
	Version = "0.1.0"
)
