//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build: pure Go SQLite with FTS5 compiled in. Cosine similarity for
// the vectors table is computed in Go.
//
//   CGO_ENABLED=0 go build ./...
//
// Driver: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the registered database/sql driver
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether vec_distance_cosine can be used
	VectorExtensionAvailable = false

	// BuildMode is reported by GetStatus
	BuildMode = "purego"
)
