package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrCorrupt = errors.New("stored value is corrupt")
)

// KV is a flat key-value store. Every call is atomic on its own; there are
// no transactions spanning keys.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
