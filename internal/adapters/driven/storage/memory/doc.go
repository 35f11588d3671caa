// Package memory provides in-memory stores for dry runs and tests.
// Nothing survives the process.
package memory
