package cache

import "sync/atomic"

// StatsTracker counts cache hits, misses, and evictions. All counters are
// atomic and monotonically increasing until Reset.
type StatsTracker struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// StatsSnapshot is a point-in-time view of the counters. HitRatePercent is
// computed on read, never stored.
type StatsSnapshot struct {
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	Evictions      uint64  `json:"evictions"`
	HitRatePercent float64 `json:"hit_rate"`
}

// NewStatsTracker creates a zeroed tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{}
}

// RecordHit increments the hit counter.
func (s *StatsTracker) RecordHit() { s.hits.Add(1) }

// RecordMiss increments the miss counter.
func (s *StatsTracker) RecordMiss() { s.misses.Add(1) }

// RecordEviction increments the eviction counter.
func (s *StatsTracker) RecordEviction() { s.evictions.Add(1) }

// Snapshot returns the current counter values. Counters are read
// individually; each is monotonically consistent between snapshots.
func (s *StatsTracker) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRatePercent = float64(snap.Hits) / float64(total) * 100
	}
	return snap
}

// Reset zeroes all counters. Administrative operation, independent of
// clearing the cache itself.
func (s *StatsTracker) Reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.evictions.Store(0)
}
