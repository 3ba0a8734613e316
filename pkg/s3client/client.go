package s3client

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetObject when the key does not exist.
var ErrNotFound = errors.New("object not found")

type ItemMetadata struct {
	Path    string
	Size    int64
	ModTime time.Time
}

type Client interface {
	ListObjects(ctx context.Context, req *ListObjectsRequest) ([]ItemMetadata, error)
	GetObject(ctx context.Context, req *GetObjectRequest) ([]byte, error)
	PutObject(ctx context.Context, req *PutObjectRequest) error
	DeleteObject(ctx context.Context, req *DeleteObjectRequest) error
	CopyObject(ctx context.Context, req *CopyObjectRequest) error
}

type ListObjectsRequest struct {
	Bucket string
	Prefix string
}

type GetObjectRequest struct {
	Bucket string
	Key    string
}

type PutObjectRequest struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
}

type DeleteObjectRequest struct {
	Bucket string
	Key    string
}

type CopyObjectRequest struct {
	SourceBucket string
	SourceKey    string
	DestBucket   string
	DestKey      string
}
