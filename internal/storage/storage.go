package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a remote object returned by a listing
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the capability surface the pipeline needs from a
// durable remote store. Uploads always target fresh timestamped keys;
// only the latest pointer is overwritten in place.
type ObjectStore interface {
	// Put uploads a local file to remotePath with attached metadata
	Put(ctx context.Context, localPath, remotePath string, metadata map[string]string) error

	// HeadExists reports whether remotePath exists, without
	// downloading it. A missing object is (false, nil), not an error.
	HeadExists(ctx context.Context, remotePath string) (bool, error)

	// Get downloads remotePath into localPath
	Get(ctx context.Context, remotePath, localPath string) error

	// ListModifiedSince returns objects under prefix whose
	// modification time is after cutoff.
	ListModifiedSince(ctx context.Context, prefix string, cutoff time.Time) ([]ObjectInfo, error)

	// Tag attaches a tag set to an existing remote object
	Tag(ctx context.Context, remotePath string, tags map[string]string) error
}
