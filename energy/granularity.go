package energy

import (
	"fmt"
	"time"
)

// Granularity is the time-bucket size used to aggregate consumption samples.
type Granularity string

// Supported granularities.
const (
	Minute Granularity = "minute"
	Hour   Granularity = "hour"
	Day    Granularity = "day"
	Month  Granularity = "month"
)

// WindowSize is the number of most recent buckets kept and charted.
const WindowSize = 10

// bucket boundaries are computed in a fixed timezone regardless of where the
// hub runs.
var parisLoc *time.Location

func init() {
	l, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		l = time.UTC
	}
	parisLoc = l
}

var bucketLayouts = map[Granularity]string{
	Minute: "2006-01-02 15:04",
	Hour:   "2006-01-02 15",
	Day:    "2006-01-02",
	Month:  "2006-01",
}

var labelLayouts = map[Granularity]string{
	Minute: "15:04",
	Hour:   "2 Jan 15h",
	Day:    "2 Jan",
	Month:  "Jan 2006",
}

// rawLayouts are the timestamp formats raw samples may arrive keyed by,
// finest first. Naive stamps are interpreted as Paris-local.
var rawLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15",
	"2006-01-02",
	"2006-01",
}

// ParseGranularity validates a user-supplied granularity string.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if _, ok := bucketLayouts[g]; !ok {
		return "", fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

// BucketKey formats the bucket key the instant falls into.
func (g Granularity) BucketKey(t time.Time) string {
	return t.In(parisLoc).Format(bucketLayouts[g])
}

// Matches reports whether the key's format matches this granularity.
func (g Granularity) Matches(key string) bool {
	_, err := time.ParseInLocation(bucketLayouts[g], key, parisLoc)
	return err == nil
}

// Label renders a human-readable bucket label.
func (g Granularity) Label(key string) string {
	t, err := time.ParseInLocation(bucketLayouts[g], key, parisLoc)
	if err != nil {
		return key
	}
	return t.Format(labelLayouts[g])
}

// Window returns the lookback window for a consumption query: the WindowSize
// most recent granularity units up to now.
func (g Granularity) Window(now time.Time) (time.Time, time.Time) {
	now = now.In(parisLoc)
	switch g {
	case Minute:
		return now.Add(-WindowSize * time.Minute), now
	case Hour:
		return now.Add(-WindowSize * time.Hour), now
	case Day:
		return now.AddDate(0, 0, -WindowSize), now
	default:
		return now.AddDate(0, -WindowSize, 0), now
	}
}

// RecentBuckets returns the WindowSize most recent bucket keys ending at
// now, oldest first.
func (g Granularity) RecentBuckets(now time.Time) []string {
	now = now.In(parisLoc)
	keys := make([]string, 0, WindowSize)
	for i := WindowSize - 1; i >= 0; i-- {
		var t time.Time
		switch g {
		case Minute:
			t = now.Add(-time.Duration(i) * time.Minute)
		case Hour:
			t = now.Add(-time.Duration(i) * time.Hour)
		case Day:
			t = now.AddDate(0, 0, -i)
		default:
			t = now.AddDate(0, -i, 0)
		}
		keys = append(keys, g.BucketKey(t))
	}
	return keys
}

// parseSampleTime parses a raw sample timestamp in any accepted format.
func parseSampleTime(key string) (time.Time, bool) {
	for _, layout := range rawLayouts {
		if t, err := time.ParseInLocation(layout, key, parisLoc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
