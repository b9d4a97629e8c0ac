// Package accounting tracks gateway call volume: a running total, per-minute
// buckets and the busiest minute seen since the process started.
package accounting

import (
	"sync"
	"time"
)

// MinuteLayout formats the bucket key for a point in time.
const MinuteLayout = "2006-01-02 15:04"

// Observer receives every accounted call along with the current peak. The
// metrics recorder implements it.
type Observer interface {
	ObserveAPICall(peak int64)
}

// Config controls bucket retention and the clock.
type Config struct {
	// Retention bounds how long minute buckets are kept. Zero keeps every
	// bucket for the process lifetime.
	Retention time.Duration
	Now       func() time.Time
	Observer  Observer
}

// Snapshot is the read-only view served by the metadata endpoint.
type Snapshot struct {
	TotalCallsToday    int64 `json:"totalCallsToday"`
	PeakCallsPerMinute int64 `json:"peakCallsPerMinute"`
}

type bucket struct {
	start time.Time
	count int64
}

// Service owns the call counters. It is created at startup and injected into
// the server; every method is safe for concurrent use.
type Service struct {
	mu        sync.Mutex
	total     int64
	peak      int64
	buckets   map[string]*bucket
	retention time.Duration
	now       func() time.Time
	observer  Observer
}

// New constructs an empty Service.
func New(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Retention < 0 {
		cfg.Retention = 0
	}
	return &Service{
		buckets:   make(map[string]*bucket),
		retention: cfg.Retention,
		now:       cfg.Now,
		observer:  cfg.Observer,
	}
}

// Key returns the minute bucket key for t.
func Key(t time.Time) string {
	return t.Format(MinuteLayout)
}

// Record counts one call against the current minute and returns the updated
// snapshot. The peak only ever grows, even when old buckets are evicted.
func (s *Service) Record() Snapshot {
	s.mu.Lock()
	now := s.now()
	key := Key(now)
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{start: now.Truncate(time.Minute)}
		s.buckets[key] = b
		s.evictLocked(now)
	}
	b.count++
	s.total++
	if b.count > s.peak {
		s.peak = b.count
	}
	snap := Snapshot{TotalCallsToday: s.total, PeakCallsPerMinute: s.peak}
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveAPICall(snap.PeakCallsPerMinute)
	}
	return snap
}

// Snapshot returns the current totals without recording a call.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{TotalCallsToday: s.total, PeakCallsPerMinute: s.peak}
}

// Bucket returns the count recorded under a minute key.
func (s *Service) Bucket(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		return b.count
	}
	return 0
}

// Buckets returns a copy of every retained minute bucket.
func (s *Service) Buckets() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.buckets))
	for key, b := range s.buckets {
		out[key] = b.count
	}
	return out
}

func (s *Service) evictLocked(now time.Time) {
	if s.retention <= 0 {
		return
	}
	cutoff := now.Add(-s.retention)
	for key, b := range s.buckets {
		if b.start.Add(time.Minute).Before(cutoff) {
			delete(s.buckets, key)
		}
	}
}
