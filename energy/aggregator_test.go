package energy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeNonRegression(t *testing.T) {
	a := NewAggregator(Hour)

	a.Merge("d1", "lamp", map[string]float64{"2024-01-01 10": 3.5})

	// a transient zero never erases recorded history
	a.Merge("d1", "lamp", map[string]float64{"2024-01-01 10": 0})
	assert.Equal(t, 3.5, a.Snapshot("d1")["2024-01-01 10"])

	// a non-zero value overwrites a stored zero
	a.Merge("d1", "lamp", map[string]float64{"2024-01-01 11": 0})
	a.Merge("d1", "lamp", map[string]float64{"2024-01-01 11": 1.2})
	assert.Equal(t, 1.2, a.Snapshot("d1")["2024-01-01 11"])

	// a non-zero value overwrites a missing key
	a.Merge("d1", "lamp", map[string]float64{"2024-01-01 12": 0.7})
	assert.Equal(t, 0.7, a.Snapshot("d1")["2024-01-01 12"])
}

func TestRegroupPerMinuteIntoHourBucket(t *testing.T) {
	a := NewAggregator(Hour)

	a.Merge("d1", "lamp", map[string]float64{
		"2024-01-01T10:05:00": 1.5,
		"2024-01-01T10:42:00": 2.5,
	})

	// both per-minute samples land in the same Paris hour bucket, summed
	buckets := a.Snapshot("d1")
	assert.Equal(t, 1, len(buckets))
	assert.Equal(t, 4.0, buckets["2024-01-01 10"])
}

func TestRegroupDropsUnparseableKeys(t *testing.T) {
	a := NewAggregator(Day)

	a.Merge("d1", "lamp", map[string]float64{"not-a-time": 9})
	assert.Equal(t, 0, len(a.Snapshot("d1")))
}

func TestSeriesBoundedToTenBuckets(t *testing.T) {
	a := NewAggregator(Day)
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	samples := map[string]float64{}
	for i := 0; i < 30; i++ {
		samples[now.AddDate(0, 0, -i).Format("2006-01-02")] = float64(i + 1)
	}
	a.Merge("d1", "lamp", samples)

	data := a.Series(now)
	assert.Equal(t, WindowSize, len(data.Buckets))
	assert.Equal(t, WindowSize, len(data.Labels))
	assert.Equal(t, 1, len(data.Series))
	assert.Equal(t, WindowSize, len(data.Series[0].Values))

	// buckets are the most recent ones, oldest first
	assert.Equal(t, "2024-03-11", data.Buckets[0])
	assert.Equal(t, "2024-03-20", data.Buckets[WindowSize-1])
	assert.Equal(t, 1.0, data.Series[0].Values[WindowSize-1])
}

func TestSeriesMissingBucketsAreZero(t *testing.T) {
	a := NewAggregator(Hour)
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	a.Merge("d1", "lamp", map[string]float64{"2024-03-20 12": 2.0})

	data := a.Series(now)
	assert.Equal(t, 2.0, data.Series[0].Values[WindowSize-1])
	for i := 0; i < WindowSize-1; i++ {
		assert.Equal(t, 0.0, data.Series[0].Values[i])
	}
}

func TestSetGranularityPurgesMismatchedKeys(t *testing.T) {
	a := NewAggregator(Hour)

	a.Merge("d1", "lamp", map[string]float64{"2024-01-01 10": 3.0})

	changed := a.SetGranularity(Day)
	assert.True(t, changed)

	// the hour-format key no longer matches the day granularity
	assert.Equal(t, 0, len(a.Snapshot("d1")))

	changed = a.SetGranularity(Day)
	assert.False(t, changed)
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("hour")
	assert.Nil(t, err)
	assert.Equal(t, Hour, g)

	_, err = ParseGranularity("fortnight")
	assert.NotNil(t, err)
}

func TestWindowSizes(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	start, _ := Hour.Window(now)
	assert.Equal(t, now.Add(-10*time.Hour).Unix(), start.Unix())

	start, _ = Month.Window(now)
	assert.Equal(t, now.AddDate(0, -10, 0).Unix(), start.Unix())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "1 Jan 10h", Hour.Label("2024-01-01 10"))
	assert.Equal(t, "1 Jan", Day.Label("2024-01-01"))
	assert.Equal(t, "Jan 2024", Month.Label("2024-01"))
	assert.Equal(t, "10:05", Minute.Label("2024-01-01 10:05"))
}
