package storage

import (
	"context"
	"errors"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	for _, kind := range []string{"", KindMemory} {
		store, err := NewStore(kind, "ignored.db")
		if err != nil {
			t.Fatalf("new memory store %q: %v", kind, err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Fatalf("expected memory store for %q, got %T", kind, store)
		}
		if err := store.Init(context.Background()); err != nil {
			t.Fatalf("init: %v", err)
		}
		if err := CloseIfSupported(store); err != nil {
			t.Fatalf("close memory store: %v", err)
		}
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("redis", "")
	if !errors.Is(err, ErrUnsupportedBackend) {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}
