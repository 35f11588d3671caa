// Package domain defines the core business entities for llmsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ContentItem: One discoverable page produced by an extractor
//   - FingerprintRecord: The persisted change-detection baseline for a source
//   - RunResult: The outcome of one regeneration pass
//   - Config: The immutable run configuration
//   - Schedule: The anchored timer used by the scheduled trigger
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
