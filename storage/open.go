package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported backend names.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Open returns the backend named by kind rooted in dataDir.
func Open(kind, dataDir string) (Database, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = BackendMemory
	}
	if kind != BackendMemory {
		if strings.TrimSpace(dataDir) == "" {
			return nil, fmt.Errorf("storage: data dir required for %s backend", kind)
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
	}
	switch kind {
	case BackendMemory:
		return NewMemDB(), nil
	case BackendLevelDB:
		return NewLevelDB(filepath.Join(dataDir, "ledger"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dataDir, "ledger.db"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", kind)
	}
}
