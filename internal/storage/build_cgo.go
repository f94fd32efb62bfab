//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag. Vector search runs inside SQLite
// through vec_distance_cosine, and the fts5 tag is needed for the entries_fts
// lexical index.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// Driver: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the registered database/sql driver
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether vec_distance_cosine can be used
	VectorExtensionAvailable = true

	// BuildMode is reported by GetStatus
	BuildMode = "cgo"
)
