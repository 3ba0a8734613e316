// Package s3test provides an in-memory s3client.Client for tests.
package s3test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client"
)

// Op names an operation for fault injection.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpCopy   Op = "copy"
)

type object struct {
	body    []byte
	modTime time.Time
}

// MemoryClient stores objects per bucket in memory. Keys are full object keys.
type MemoryClient struct {
	mu      sync.Mutex
	buckets map[string]map[string]object
	now     func() time.Time
	tick    time.Duration

	// FailFunc, when set, is consulted once before every operation. Copies
	// report their source bucket and key. A non-nil return value fails the
	// operation without side effects.
	FailFunc func(op Op, bucket, key string) error

	calls []string
}

// NewMemoryClient creates a client knowing the given buckets. Unknown
// buckets fail every operation.
func NewMemoryClient(buckets ...string) *MemoryClient {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &MemoryClient{
		buckets: make(map[string]map[string]object),
		tick:    time.Second,
	}
	c.now = func() time.Time {
		base = base.Add(c.tick)
		return base
	}
	for _, b := range buckets {
		c.buckets[b] = make(map[string]object)
	}
	return c
}

// Seed stores an object directly, bypassing fault injection.
func (c *MemoryClient) Seed(bucket, key, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[bucket][key] = object{body: []byte(body), modTime: c.now()}
}

// SeedAt stores an object with a fixed modification time.
func (c *MemoryClient) SeedAt(bucket, key, body string, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[bucket][key] = object{body: []byte(body), modTime: modTime}
}

// Remove deletes an object directly, bypassing fault injection.
func (c *MemoryClient) Remove(bucket, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buckets[bucket], key)
}

// Keys returns the sorted keys stored in bucket.
func (c *MemoryClient) Keys(bucket string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.buckets[bucket]))
	for k := range c.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Body returns the stored body of an object and whether it exists.
func (c *MemoryClient) Body(bucket, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.buckets[bucket][key]
	return string(obj.body), ok
}

// Calls returns the mutating operations performed so far, formatted as
// "op bucket/key".
func (c *MemoryClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *MemoryClient) bucket(op Op, name, key string) (map[string]object, error) {
	if c.FailFunc != nil {
		if err := c.FailFunc(op, name, key); err != nil {
			return nil, err
		}
	}
	b, ok := c.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%s s3://%s/%s: no such bucket", op, name, key)
	}
	return b, nil
}

func (c *MemoryClient) ListObjects(ctx context.Context, req *s3client.ListObjectsRequest) ([]s3client.ItemMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.bucket(OpList, req.Bucket, req.Prefix)
	if err != nil {
		return nil, err
	}

	var items []s3client.ItemMetadata
	for key, obj := range b {
		path := key
		if req.Prefix != "" {
			if !strings.HasPrefix(key, req.Prefix+"/") {
				continue
			}
			path = strings.TrimPrefix(key, req.Prefix+"/")
		}
		items = append(items, s3client.ItemMetadata{
			Path:    path,
			Size:    int64(len(obj.body)),
			ModTime: obj.modTime,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func (c *MemoryClient) GetObject(ctx context.Context, req *s3client.GetObjectRequest) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.bucket(OpGet, req.Bucket, req.Key)
	if err != nil {
		return nil, err
	}
	obj, ok := b[req.Key]
	if !ok {
		return nil, fmt.Errorf("s3://%s/%s: %w", req.Bucket, req.Key, s3client.ErrNotFound)
	}
	return append([]byte(nil), obj.body...), nil
}

func (c *MemoryClient) PutObject(ctx context.Context, req *s3client.PutObjectRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.bucket(OpPut, req.Bucket, req.Key)
	if err != nil {
		return err
	}
	b[req.Key] = object{body: append([]byte(nil), req.Body...), modTime: c.now()}
	c.calls = append(c.calls, fmt.Sprintf("%s %s/%s", OpPut, req.Bucket, req.Key))
	return nil
}

func (c *MemoryClient) DeleteObject(ctx context.Context, req *s3client.DeleteObjectRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.bucket(OpDelete, req.Bucket, req.Key)
	if err != nil {
		return err
	}
	delete(b, req.Key)
	c.calls = append(c.calls, fmt.Sprintf("%s %s/%s", OpDelete, req.Bucket, req.Key))
	return nil
}

func (c *MemoryClient) CopyObject(ctx context.Context, req *s3client.CopyObjectRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, err := c.bucket(OpCopy, req.SourceBucket, req.SourceKey)
	if err != nil {
		return err
	}
	dst, ok := c.buckets[req.DestBucket]
	if !ok {
		return fmt.Errorf("%s s3://%s/%s: no such bucket", OpCopy, req.DestBucket, req.DestKey)
	}
	obj, ok := src[req.SourceKey]
	if !ok {
		return fmt.Errorf("copy source s3://%s/%s: %w", req.SourceBucket, req.SourceKey, s3client.ErrNotFound)
	}
	dst[req.DestKey] = object{body: append([]byte(nil), obj.body...), modTime: c.now()}
	c.calls = append(c.calls, fmt.Sprintf("%s %s/%s -> %s/%s", OpCopy, req.SourceBucket, req.SourceKey, req.DestBucket, req.DestKey))
	return nil
}
