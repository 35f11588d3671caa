// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The pipeline is Coordinator -> Generator -> Extractor ->
// FingerprintCache -> Renderer -> SiteWriter -> FingerprintCache.Commit.
//
// Services are pure Go with no CGO.
package services
