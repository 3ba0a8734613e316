// Package listing enumerates the live objects of a replica.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client"
)

// ErrListing marks a replica that could not be listed. A run must abort
// when it sees this: an empty listing would read as "everything deleted".
var ErrListing = errors.New("replica listing failed")

// Listing maps a logical key to its last modification time.
type Listing map[string]time.Time

func (l Listing) Has(key string) bool {
	_, ok := l[key]
	return ok
}

type Lister struct {
	client   s3client.Client
	reserved map[string]struct{}
	excludes []string
}

// NewLister returns a Lister that hides reservedKeys and any key matching
// one of the exclude patterns.
func NewLister(client s3client.Client, reservedKeys []string, excludes []string) (*Lister, error) {
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	reserved := make(map[string]struct{}, len(reservedKeys))
	for _, k := range reservedKeys {
		reserved[k] = struct{}{}
	}

	return &Lister{
		client:   client,
		reserved: reserved,
		excludes: excludes,
	}, nil
}

func (l *Lister) List(ctx context.Context, r replica.Replica) (Listing, error) {
	objects, err := l.client.ListObjects(ctx, &s3client.ListObjectsRequest{
		Bucket: r.Bucket,
		Prefix: r.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrListing, r, err)
	}

	result := make(Listing, len(objects))
	for _, obj := range objects {
		if l.skip(obj.Path) {
			continue
		}
		result[obj.Path] = obj.ModTime
	}

	return result, nil
}

// ListPair lists both replicas, failing if either cannot be listed.
func (l *Lister) ListPair(ctx context.Context, pair replica.Pair) (primary, secondary Listing, err error) {
	primary, err = l.List(ctx, pair.Primary)
	if err != nil {
		return nil, nil, err
	}
	secondary, err = l.List(ctx, pair.Secondary)
	if err != nil {
		return nil, nil, err
	}
	return primary, secondary, nil
}

func (l *Lister) skip(key string) bool {
	if key == "" {
		return true
	}
	if _, ok := l.reserved[key]; ok {
		return true
	}
	for _, pattern := range l.excludes {
		if matched, _ := doublestar.Match(pattern, key); matched {
			return true
		}
	}
	return false
}
