// Package progress persists the keys already handled by the current run so
// an interrupted run can resume where it stopped.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/logger"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client"
)

// DefaultKey is the object key of the progress log inside each replica.
const DefaultKey = "replication.log.json"

// ErrProgressSave is returned when no replica accepted the progress log.
var ErrProgressSave = errors.New("progress log could not be saved to any replica")

// Set is a set of completed keys.
type Set map[string]struct{}

func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Add(key string) {
	s[key] = struct{}{}
}

func (s Set) Clone() Set {
	c := make(Set, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Sorted returns the keys in lexicographic order.
func (s Set) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Log is the run-scoped checkpoint, mirrored in both replicas.
type Log struct {
	client s3client.Client
	pair   replica.Pair
	key    string
	logger logger.Logger
}

func NewLog(client s3client.Client, pair replica.Pair, key string, log logger.Logger) *Log {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Log{
		client: client,
		pair:   pair,
		key:    key,
		logger: log,
	}
}

func (l *Log) Key() string {
	return l.key
}

// Load returns the first readable progress log, primary first. A log missing
// everywhere means the previous run completed and yields an empty set.
func (l *Log) Load(ctx context.Context) Set {
	for _, r := range l.pair.All() {
		data, err := l.client.GetObject(ctx, &s3client.GetObjectRequest{
			Bucket: r.Bucket,
			Key:    r.ObjectKey(l.key),
		})
		if err != nil {
			if !errors.Is(err, s3client.ErrNotFound) {
				l.logger.Warn(fmt.Sprintf("could not read progress log from %s: %v", r, err))
			}
			continue
		}

		var keys []string
		if err := json.Unmarshal(data, &keys); err != nil {
			l.logger.Warn(fmt.Sprintf("could not decode progress log from %s: %v", r, err))
			continue
		}

		return NewSet(keys...)
	}

	return NewSet()
}

// Save writes the full set to every replica. It fails only when no replica
// accepted the write.
func (l *Log) Save(ctx context.Context, completed Set) error {
	data, err := json.MarshalIndent(completed.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress log: %w", err)
	}

	var errs []error
	for _, r := range l.pair.All() {
		err := l.client.PutObject(ctx, &s3client.PutObjectRequest{
			Bucket:      r.Bucket,
			Key:         r.ObjectKey(l.key),
			Body:        data,
			ContentType: "application/json",
		})
		if err != nil {
			l.logger.Warn(fmt.Sprintf("could not save progress log to %s: %v", r, err))
			errs = append(errs, fmt.Errorf("%s: %w", r, err))
		}
	}

	if len(errs) == len(l.pair.All()) {
		return fmt.Errorf("%w: %w", ErrProgressSave, errors.Join(errs...))
	}
	return nil
}

// Clear removes the log from every replica. Any failure is returned: a log
// left behind would make the next run skip its keys.
func (l *Log) Clear(ctx context.Context) error {
	var errs []error
	for _, r := range l.pair.All() {
		err := l.client.DeleteObject(ctx, &s3client.DeleteObjectRequest{
			Bucket: r.Bucket,
			Key:    r.ObjectKey(l.key),
		})
		if err != nil {
			l.logger.Error("clear progress log", r.URI(l.key), err)
			errs = append(errs, fmt.Errorf("%s: %w", r, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear progress log: %w", errors.Join(errs...))
	}
	return nil
}
