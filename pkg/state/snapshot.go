// Package state holds the durable view of where each key lived after the
// last completed run.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
)

// DefaultKey is the object key of the snapshot inside each replica.
const DefaultKey = "replication_state.json"

// Source records which replica produced a key's current content.
type Source string

const (
	SourcePrimary   Source = Source(replica.Primary)
	SourceSecondary Source = Source(replica.Secondary)
	SourceEqual     Source = "equal"
)

type FileRecord struct {
	LastSynced time.Time     `json:"last_synced"`
	LastSeenIn []replica.Tag `json:"last_seen_in"`
	Source     Source        `json:"source"`
}

// SeenIn reports whether the key was present in tag's replica at the end of
// the run that produced this record.
func (r FileRecord) SeenIn(tag replica.Tag) bool {
	for _, t := range r.LastSeenIn {
		if t == tag {
			return true
		}
	}
	return false
}

type Snapshot struct {
	LastUpdated time.Time             `json:"last_updated"`
	Files       map[string]FileRecord `json:"files"`
}

func NewSnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		LastUpdated: now.UTC(),
		Files:       make(map[string]FileRecord),
	}
}

// Record returns the record for key and whether one exists.
func (s *Snapshot) Record(key string) (FileRecord, bool) {
	if s == nil {
		return FileRecord{}, false
	}
	rec, ok := s.Files[key]
	return rec, ok
}

func encode(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if s.Files == nil {
		s.Files = make(map[string]FileRecord)
	}
	for key, rec := range s.Files {
		for _, tag := range rec.LastSeenIn {
			if !tag.Valid() {
				return nil, fmt.Errorf("snapshot record %q has unknown replica tag %q", key, tag)
			}
		}
	}
	return &s, nil
}
