package planner

import (
	"fmt"
	"sort"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/listing"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/progress"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/state"
)

// Plan decides one action per key over the union of both listings and the
// snapshot, in lexicographic key order. Keys in completed are left out.
//
// A key present on one side only is either new there, and gets copied, or
// was deleted on the other side since the last run, and gets deleted. The
// snapshot's last_seen_in tells the two apart.
func Plan(primary, secondary listing.Listing, snap *state.Snapshot, completed progress.Set) []Item {
	keys := unionKeys(primary, secondary, snap)

	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		if completed.Has(key) {
			continue
		}

		rec, known := snap.Record(key)
		items = append(items, decide(key, primary.Has(key), secondary.Has(key), rec, known))
	}

	return items
}

func decide(key string, inPrimary, inSecondary bool, rec state.FileRecord, known bool) Item {
	switch {
	case inPrimary && !inSecondary:
		return decideOneSided(key, replica.Primary, replica.Secondary, rec, known)
	case inSecondary && !inPrimary:
		return decideOneSided(key, replica.Secondary, replica.Primary, rec, known)
	case inPrimary && inSecondary:
		return Item{Key: key, Action: ActionNone, Reason: "present in both"}
	default:
		return Item{Key: key, Action: ActionNone, Reason: "absent from both"}
	}
}

// decideOneSided handles a key found in present but missing from absent.
func decideOneSided(key string, present, absent replica.Tag, rec state.FileRecord, known bool) Item {
	if known && rec.SeenIn(absent) {
		return Item{
			Key:    key,
			Action: ActionDelete,
			Target: present,
			Reason: fmt.Sprintf("deleted from %s", absent),
		}
	}
	return Item{
		Key:    key,
		Action: ActionCopy,
		From:   present,
		To:     absent,
		Reason: fmt.Sprintf("new in %s", present),
	}
}

func unionKeys(primary, secondary listing.Listing, snap *state.Snapshot) []string {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	for k := range primary {
		seen[k] = struct{}{}
	}
	for k := range secondary {
		seen[k] = struct{}{}
	}
	if snap != nil {
		for k := range snap.Files {
			seen[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func Summarize(items []Item) Summary {
	var s Summary
	for _, item := range items {
		switch item.Action {
		case ActionCopy:
			s.Copy++
		case ActionDelete:
			s.Delete++
		default:
			s.None++
		}
	}
	return s
}
