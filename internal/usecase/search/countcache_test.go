package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCountCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCountCache(3 * time.Hour).WithClock(clock.Now)

	var calls int
	load := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 2; i++ {
		n, err := cache.Get(context.Background(), "nl", "/v1/nl/users/search?meta=count", load)
		if err != nil || n != 42 {
			t.Fatalf("unexpected result %d, %v", n, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 executor call within TTL, got %d", calls)
	}

	clock.Advance(3*time.Hour + time.Second)
	if _, err := cache.Get(context.Background(), "nl", "/v1/nl/users/search?meta=count", load); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected a fresh call after expiry, got %d calls", calls)
	}
}

func TestCountCache_TenantIsolation(t *testing.T) {
	cache := NewCountCache(time.Hour)
	var calls int
	load := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	a, _ := cache.Get(context.Background(), "nl", "same", load)
	b, _ := cache.Get(context.Background(), "de", "same", load)
	if a == b || calls != 2 {
		t.Errorf("tenants must not share entries: nl=%d de=%d calls=%d", a, b, calls)
	}
}

func TestCountCache_ErrorsNotCached(t *testing.T) {
	cache := NewCountCache(time.Hour)
	var calls int
	failing := func(context.Context) (int, error) {
		calls++
		return 0, errors.New("index down")
	}

	if _, err := cache.Get(context.Background(), "nl", "k", failing); err == nil {
		t.Fatal("expected error")
	}
	if _, err := cache.Get(context.Background(), "nl", "k", failing); err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d", cache.Len())
	}
}

func TestCountCache_CollapsesConcurrentMisses(t *testing.T) {
	cache := NewCountCache(time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Get(context.Background(), "nl", "k", load)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got > 2 {
		t.Errorf("expected concurrent misses to collapse, got %d calls", got)
	}
}

func TestCountCache_EmptyKeyBypasses(t *testing.T) {
	cache := NewCountCache(time.Hour)
	var calls int
	load := func(context.Context) (int, error) {
		calls++
		return 1, nil
	}
	_, _ = cache.Get(context.Background(), "nl", "", load)
	_, _ = cache.Get(context.Background(), "nl", "", load)
	if calls != 2 || cache.Len() != 0 {
		t.Errorf("expected bypass, calls=%d len=%d", calls, cache.Len())
	}
}

func TestCountCache_Purge(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCountCache(time.Minute).WithClock(clock.Now)
	load := func(context.Context) (int, error) { return 1, nil }

	_, _ = cache.Get(context.Background(), "nl", "a", load)
	clock.Advance(2 * time.Minute)
	_, _ = cache.Get(context.Background(), "nl", "b", load)
	cache.Purge()
	if cache.Len() != 1 {
		t.Errorf("expected 1 live entry, got %d", cache.Len())
	}
}

func TestCountCache_ExpiredReadEvicts(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCountCache(time.Minute).WithClock(clock.Now)

	_, _ = cache.Get(context.Background(), "nl", "k", func(context.Context) (int, error) { return 1, nil })
	clock.Advance(2 * time.Minute)
	_, err := cache.Get(context.Background(), "nl", "k", func(context.Context) (int, error) {
		return 0, errors.New("index down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry must be evicted, got %d entries", cache.Len())
	}
}

func TestCountCache_PurgeEvery(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCountCache(time.Minute).WithClock(clock.Now)
	_, _ = cache.Get(context.Background(), "nl", "k", func(context.Context) (int, error) { return 1, nil })
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.PurgeEvery(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for cache.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if cache.Len() != 0 {
		t.Errorf("expected expired entry purged, got %d entries", cache.Len())
	}
}
