//go:generate mockgen -package mocks -destination mocks/interface.go -source=interface.go
package blob

import (
	"context"
)

// Putter stores one object, unconditionally replacing anything already at key.
type Putter interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
}
