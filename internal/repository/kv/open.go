package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/alarm-clock/internal/config"
)

// errUnsupportedBackend is returned by Open for an unknown backend name.
var errUnsupportedBackend = errors.New("unsupported store backend")

// Open builds the backend selected by the store configuration.
// The returned close function releases its resources and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.StoreBackendFile:
		return NewFileKV(cfg.Path), noop, nil
	case config.StoreBackendSQLite:
		store, err := OpenSQLiteKV(ctx, cfg.Path)
		if err != nil {
			return nil, noop, err
		}

		return store, store.Close, nil
	case config.StoreBackendMemory:
		return NewMemoryKV(), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", errUnsupportedBackend, cfg.Backend)
	}
}
