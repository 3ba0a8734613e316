package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/logger"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client"
)

// ErrSnapshotSave is returned when no replica accepted the snapshot.
var ErrSnapshotSave = errors.New("snapshot could not be saved to any replica")

// Store reads and writes the snapshot redundantly in both replicas.
type Store struct {
	client s3client.Client
	pair   replica.Pair
	key    string
	clock  clockwork.Clock
	logger logger.Logger
}

func NewStore(client s3client.Client, pair replica.Pair, key string, clock clockwork.Clock, log logger.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Store{
		client: client,
		pair:   pair,
		key:    key,
		clock:  clock,
		logger: log,
	}
}

func (s *Store) Key() string {
	return s.key
}

// Load returns the newest readable snapshot across both replicas, or a fresh
// empty one when neither holds a readable copy.
func (s *Store) Load(ctx context.Context) *Snapshot {
	var newest *Snapshot
	var newestFrom replica.Tag
	unreadable := 0

	for _, r := range s.pair.All() {
		candidate, err := s.read(ctx, r)
		if err != nil {
			if !errors.Is(err, s3client.ErrNotFound) {
				s.logger.Warn(fmt.Sprintf("could not read snapshot from %s: %v", r, err))
				unreadable++
			}
			continue
		}
		if newest == nil || candidate.LastUpdated.After(newest.LastUpdated) {
			newest = candidate
			newestFrom = r.Tag
		}
	}

	if newest == nil {
		if unreadable > 0 {
			s.logger.Warn(fmt.Sprintf("no readable snapshot (%d of %d copies unreadable), starting fresh: deletions since the last run will be copied back",
				unreadable, len(s.pair.All())))
			return NewSnapshot(s.clock.Now())
		}
		s.logger.Info("no snapshot found, starting fresh")
		return NewSnapshot(s.clock.Now())
	}

	s.logger.Debug(fmt.Sprintf("loaded snapshot from %s (last updated %s, %d files)",
		newestFrom, newest.LastUpdated.Format("2006-01-02T15:04:05Z07:00"), len(newest.Files)))
	return newest
}

func (s *Store) read(ctx context.Context, r replica.Replica) (*Snapshot, error) {
	data, err := s.client.GetObject(ctx, &s3client.GetObjectRequest{
		Bucket: r.Bucket,
		Key:    r.ObjectKey(s.key),
	})
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Save stamps the snapshot with the current time and writes it to every
// replica. It fails only when no replica accepted the write.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	snap.LastUpdated = s.clock.Now().UTC()
	if snap.Files == nil {
		snap.Files = make(map[string]FileRecord)
	}

	data, err := encode(snap)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range s.pair.All() {
		err := s.client.PutObject(ctx, &s3client.PutObjectRequest{
			Bucket:      r.Bucket,
			Key:         r.ObjectKey(s.key),
			Body:        data,
			ContentType: "application/json",
		})
		if err != nil {
			s.logger.Error("save snapshot", r.URI(s.key), err)
			errs = append(errs, fmt.Errorf("%s: %w", r, err))
		}
	}

	if len(errs) == len(s.pair.All()) {
		return fmt.Errorf("%w: %w", ErrSnapshotSave, errors.Join(errs...))
	}
	return nil
}
