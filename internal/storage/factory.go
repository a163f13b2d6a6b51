package storage

import (
	"errors"
	"fmt"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported store backend")
	ErrBackendUnavailable = errors.New("store backend not compiled in")
)

// NewStore opens the backend named by kind. The memory backend ignores
// sqlitePath and keeps runs only for the life of the process.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, kind)
	}
}

// CloseIfSupported releases backends that hold a database handle.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
