package analytics

import (
	"testing"
	"time"

	"github.com/kerosindigital/bsky.link/internal/store/viewlog"
)

func TestHourlyViews(t *testing.T) {
	h := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	views := []viewlog.View{
		{TS: h.Add(59 * time.Minute), Kind: "post", CacheHit: true},
		{TS: h.Add(5 * time.Minute), Kind: "post"},
		{TS: h.Add(10 * time.Minute), Kind: "feed"},
		{TS: h.Add(61 * time.Minute), Kind: "post"},
	}
	b := HourlyViews(views)
	keys := SortedBucketKeys(b)
	if len(keys) != 2 || !keys[0].Equal(h) || !keys[1].Equal(h.Add(time.Hour)) {
		t.Fatalf("keys: %v", keys)
	}
	first := b[h]
	if first["post"] != 2 || first["post_hit"] != 1 || first["feed"] != 1 {
		t.Fatalf("first bucket: %v", first)
	}
	if b[h.Add(time.Hour)]["post"] != 1 {
		t.Fatalf("second bucket: %v", b[h.Add(time.Hour)])
	}
}
