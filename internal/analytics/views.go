package analytics

import (
	"sort"
	"time"

	"github.com/kerosindigital/bsky.link/internal/store/viewlog"
)

// HourlyViews aggregates views into per-hour UTC buckets keyed by kind.
// Cache hits are also counted under "<kind>_hit".
func HourlyViews(views []viewlog.View) map[time.Time]map[string]int {
	buckets := make(map[time.Time]map[string]int)
	for _, v := range views {
		key := v.TS.UTC().Truncate(time.Hour)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[string]int)
		}
		buckets[key][v.Kind]++
		if v.CacheHit {
			buckets[key][v.Kind+"_hit"]++
		}
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[string]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
