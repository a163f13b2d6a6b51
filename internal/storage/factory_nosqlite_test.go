//go:build !sqlite

package storage

import (
	"errors"
	"testing"
)

func TestNewStoreSQLiteUnavailable(t *testing.T) {
	_, err := NewStore(KindSQLite, "runs.db")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected unavailable backend error, got %v", err)
	}
}
