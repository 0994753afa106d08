// Package history persists finished allocation reports in a local SQLite
// database so earlier runs can be listed, inspected, compared and removed.
//
// Each run is one row: summary columns for listing plus the full report as
// a JSON payload. The database uses the pure-Go modernc.org/sqlite driver,
// so no cgo toolchain is needed.
package history
