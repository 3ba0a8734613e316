package state

import (
	"time"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/listing"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
)

// Rebuild derives the snapshot files from listings taken after all actions
// were applied. The previous snapshot plays no part.
func Rebuild(primary, secondary listing.Listing, now time.Time) map[string]FileRecord {
	files := make(map[string]FileRecord, len(primary)+len(secondary))
	now = now.UTC()

	add := func(key string) {
		if _, done := files[key]; done {
			return
		}

		pTime, inPrimary := primary[key]
		sTime, inSecondary := secondary[key]

		var seenIn []replica.Tag
		if inPrimary {
			seenIn = append(seenIn, replica.Primary)
		}
		if inSecondary {
			seenIn = append(seenIn, replica.Secondary)
		}

		files[key] = FileRecord{
			LastSynced: now,
			LastSeenIn: seenIn,
			Source:     source(pTime, inPrimary, sTime, inSecondary),
		}
	}

	for key := range primary {
		add(key)
	}
	for key := range secondary {
		add(key)
	}

	return files
}

// source picks the replica with the strictly newer modification time. A key
// missing on one side has nothing to compare against and is equal.
func source(pTime time.Time, inPrimary bool, sTime time.Time, inSecondary bool) Source {
	if !inPrimary || !inSecondary {
		return SourceEqual
	}
	switch {
	case pTime.After(sTime):
		return SourcePrimary
	case sTime.After(pTime):
		return SourceSecondary
	default:
		return SourceEqual
	}
}
