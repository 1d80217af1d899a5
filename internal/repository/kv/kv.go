package kv

import (
	"context"
	"errors"
)

// Store is a key-value store holding ordered lists of strings.
type Store interface {
	// GetList returns the list stored under key. ok is false when the key was never set.
	GetList(ctx context.Context, key string) (values []string, ok bool, err error)
	// SetList replaces the list stored under key in full.
	SetList(ctx context.Context, key string, values []string) error
}

// ErrEmptyKey is returned when an operation is called with an empty key.
var ErrEmptyKey = errors.New("key must be provided")
