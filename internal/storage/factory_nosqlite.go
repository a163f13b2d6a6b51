//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("%w: rebuild evoworld with -tags sqlite to persist runs across invocations", ErrBackendUnavailable)
}
