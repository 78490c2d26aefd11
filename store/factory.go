package store

import (
	"fmt"
	"path/filepath"
)

// Backends lists the names accepted by New.
var Backends = []string{"json", "sqlite", "memory"}

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"   - one JSON file per key in dataDir (default)
//	"sqlite" - SQLite database at dataDir/schools.db
//	"memory" - In-memory (ephemeral, for testing)
func New(backend, dataDir string) (Store, error) {
	switch backend {
	case "json", "":
		return NewJsonFileStore(dataDir)
	case "sqlite":
		dbPath := filepath.Join(dataDir, "schools.db")
		return NewSqliteStore(dbPath)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, memory)", backend)
	}
}
