//go:build sqlite_cgo

package storage

// Compiled with -tags sqlite_cgo. Uses the cgo SQLite driver, which is
// faster on large snapshots but needs a C toolchain:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
