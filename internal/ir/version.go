package ir

// Version constants for persisted artifacts.
const (
	// MapFormatVersion is the version of the identity-map text encoding.
	MapFormatVersion = 1

	// RecordFormatVersion is the version of the operation record encoding.
	RecordFormatVersion = 1

	// EngineVersion is the regeneration engine version.
	EngineVersion = "0.1.0"
)
