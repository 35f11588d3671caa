// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor: Produces the item set of a source
//   - ExtractorFactory: Creates extractors from configuration
//   - FingerprintStore: Change-detection baseline persistence
//   - SiteWriter: Manifest, sitemap and robots file edits
//   - NormaliserRegistry: File body to text conversion for the filesystem extractor
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunHistoryStore: Run audit trail. Persistent only with the sqlite store.
//   - ItemProvider: Host-supplied content for the delegated extractor.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or normaliser package
package driven
