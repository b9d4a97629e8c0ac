package accounting

import (
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type observerStub struct {
	calls int
	peak  int64
}

func (o *observerStub) ObserveAPICall(peak int64) {
	o.calls++
	o.peak = peak
}

func at(minute, second int) time.Time {
	return time.Date(2026, 10, 15, 9, minute, second, 0, time.Local)
}

func TestRecordCountsBucketAndTotal(t *testing.T) {
	c := &clock{now: at(30, 1)}
	svc := New(Config{Now: c.Now})

	for i := 0; i < 5; i++ {
		c.Set(at(30, i*10))
		svc.Record()
	}

	if got := svc.Bucket("2026-10-15 09:30"); got != 5 {
		t.Fatalf("expected bucket count 5, got %d", got)
	}
	snap := svc.Snapshot()
	if snap.TotalCallsToday != 5 || snap.PeakCallsPerMinute != 5 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestPeakNeverDecreases(t *testing.T) {
	c := &clock{now: at(0, 0)}
	svc := New(Config{Now: c.Now})

	for i := 0; i < 3; i++ {
		svc.Record()
	}
	c.Set(at(1, 0))
	svc.Record()

	snap := svc.Snapshot()
	if snap.PeakCallsPerMinute != 3 {
		t.Fatalf("expected peak 3 to survive a quieter minute, got %d", snap.PeakCallsPerMinute)
	}
	if snap.TotalCallsToday != 4 {
		t.Fatalf("expected total 4, got %d", snap.TotalCallsToday)
	}

	for i := 0; i < 4; i++ {
		svc.Record()
	}
	if got := svc.Snapshot().PeakCallsPerMinute; got != 5 {
		t.Fatalf("expected peak to rise to 5, got %d", got)
	}
}

func TestUnboundedRetentionKeepsBuckets(t *testing.T) {
	c := &clock{now: at(0, 0)}
	svc := New(Config{Now: c.Now})
	for minute := 0; minute < 10; minute++ {
		c.Set(at(minute, 0))
		svc.Record()
	}
	if got := len(svc.Buckets()); got != 10 {
		t.Fatalf("expected 10 retained buckets, got %d", got)
	}
}

func TestRetentionEvictsOldBucketsButKeepsPeak(t *testing.T) {
	c := &clock{now: at(0, 0)}
	svc := New(Config{Now: c.Now, Retention: 5 * time.Minute})

	for i := 0; i < 7; i++ {
		svc.Record()
	}
	c.Set(at(10, 0))
	svc.Record()

	if got := svc.Bucket("2026-10-15 09:00"); got != 0 {
		t.Fatalf("expected old bucket to be evicted, got %d", got)
	}
	if got := svc.Snapshot().PeakCallsPerMinute; got != 7 {
		t.Fatalf("expected peak to outlive eviction, got %d", got)
	}
}

func TestRecordNotifiesObserver(t *testing.T) {
	obs := &observerStub{}
	svc := New(Config{Now: (&clock{now: at(0, 0)}).Now, Observer: obs})
	svc.Record()
	svc.Record()
	if obs.calls != 2 || obs.peak != 2 {
		t.Fatalf("unexpected observer state %#v", obs)
	}
}

func TestRecordConcurrentSameMinute(t *testing.T) {
	svc := New(Config{Now: (&clock{now: at(45, 0)}).Now})
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Record()
		}()
	}
	wg.Wait()

	if got := svc.Bucket(Key(at(45, 0))); got != n {
		t.Fatalf("expected bucket %d, got %d", n, got)
	}
	if snap := svc.Snapshot(); snap.TotalCallsToday != n || snap.PeakCallsPerMinute != n {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}
