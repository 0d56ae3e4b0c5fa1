package s3

import (
	"context"
)

type BasicClient interface {
	Putter
}

type Putter interface {
	// Put writes data to key, replacing any existing object, and attaches metadata to it.
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) (err error)
}
