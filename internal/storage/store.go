// Package storage defines the object-store abstraction the pipeline persists
// media and side files to, plus the deterministic key layout shared by the
// download and upload passes.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Head and Get when no live object exists at the
// requested key.
var ErrNotFound = errors.New("storage: object not found")

// Metadata keys attached to every stored media object. The sha1 value must be
// the hex digest of the object bytes; the target repository identifies
// duplicates by the same digest.
const (
	MetaSHA1        = "sha1"
	MetaContentType = "content-type"
)

// ObjectInfo describes a stored object without its payload.
type ObjectInfo struct {
	Key         string
	SizeBytes   int64
	ContentType string
	SHA1        string
}

// Store is the narrow object-store surface the pipeline consumes. Both
// implementations (S3, in-memory) are safe for concurrent use.
type Store interface {
	// Exists reports whether a live object is present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Head returns object metadata, or ErrNotFound.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Get returns the object payload and metadata, or ErrNotFound. The
	// caller owns the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Put writes the payload at key with the given content type and sha1
	// hex digest attached as metadata, overwriting any existing object.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType, sha1Hex string) error

	// List returns the keys under prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
