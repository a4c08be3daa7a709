package view

import "time"

// TimestampLayout renders like "March 5 2024 at 3:04:05 PM".
const TimestampLayout = "January 2 2006 at 3:04:05 PM"

// FormatTimestamp renders an RFC 3339 createdAt in loc. Values that do not
// parse are returned unchanged.
func FormatTimestamp(createdAt string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return createdAt
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}
