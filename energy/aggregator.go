// Package energy turns per-device consumption samples into chart-ready
// bucketed series at a user-selected granularity, bounded to the most
// recent buckets.
package energy

import (
	"sort"
	"sync"
	"time"
)

type (
	// Series is one device's charted values, one per displayed bucket.
	Series struct {
		DeviceID   string    `json:"device_id"`
		DeviceName string    `json:"device_name"`
		Values     []float64 `json:"values"`
	}

	// ChartData is the chart-ready aggregation result.
	ChartData struct {
		Granularity Granularity `json:"granularity"`
		Buckets     []string    `json:"buckets"`
		Labels      []string    `json:"labels"`
		Series      []Series    `json:"series"`
	}

	// Aggregator incrementally merges polled consumption samples into a
	// rolling per-device cache keyed by bucket. Safe for concurrent use.
	Aggregator struct {
		mu          sync.Mutex
		granularity Granularity
		cache       map[string]map[string]float64
		names       map[string]string
	}
)

// NewAggregator creates an aggregator at the given granularity.
func NewAggregator(g Granularity) *Aggregator {
	return &Aggregator{
		granularity: g,
		cache:       make(map[string]map[string]float64),
		names:       make(map[string]string),
	}
}

// Granularity returns the active granularity.
func (a *Aggregator) Granularity() Granularity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.granularity
}

// SetGranularity switches the active granularity and purges cache entries
// whose key format no longer matches. It reports whether the granularity
// changed.
func (a *Aggregator) SetGranularity(g Granularity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if g == a.granularity {
		return false
	}
	a.granularity = g

	for _, buckets := range a.cache {
		for key := range buckets {
			if !g.Matches(key) {
				delete(buckets, key)
			}
		}
	}
	return true
}

// Merge regroups the incoming samples into buckets at the active granularity
// and merges them into the cache. An incoming non-zero value overwrites a
// cached zero or missing value for the same bucket; an incoming zero never
// overwrites a previously recorded non-zero value, so a transient zero
// reading cannot erase real history.
func (a *Aggregator) Merge(deviceID, deviceName string, samples map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if deviceName != "" {
		a.names[deviceID] = deviceName
	}

	grouped := regroup(samples, a.granularity)

	buckets, ok := a.cache[deviceID]
	if !ok {
		buckets = make(map[string]float64)
		a.cache[deviceID] = buckets
	}
	for key, v := range grouped {
		if v == 0 && buckets[key] > 0 {
			continue
		}
		buckets[key] = v
	}
}

// regroup re-keys raw sample timestamps into buckets at the granularity,
// summing values that fall into the same bucket. Unparseable keys are
// dropped.
func regroup(samples map[string]float64, g Granularity) map[string]float64 {
	out := make(map[string]float64, len(samples))
	for key, v := range samples {
		t, ok := parseSampleTime(key)
		if !ok {
			continue
		}
		out[g.BucketKey(t)] += v
	}
	return out
}

// Series builds the chart data for the WindowSize most recent buckets
// relative to now: one series per device, a value per displayed bucket and
// a human-readable label per bucket.
func (a *Aggregator) Series(now time.Time) ChartData {
	a.mu.Lock()
	defer a.mu.Unlock()

	g := a.granularity
	keys := g.RecentBuckets(now)

	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = g.Label(k)
	}

	data := ChartData{
		Granularity: g,
		Buckets:     keys,
		Labels:      labels,
	}

	ids := make([]string, 0, len(a.cache))
	for id := range a.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := Series{DeviceID: id, DeviceName: a.names[id], Values: make([]float64, len(keys))}
		for i, k := range keys {
			s.Values[i] = a.cache[id][k]
		}
		data.Series = append(data.Series, s)
	}
	return data
}

// Snapshot returns a copy of one device's cached buckets, for persistence.
func (a *Aggregator) Snapshot(deviceID string) map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]float64, len(a.cache[deviceID]))
	for k, v := range a.cache[deviceID] {
		out[k] = v
	}
	return out
}
