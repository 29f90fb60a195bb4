package conn

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPollerNotifiesListenersInOrder(t *testing.T) {
	m, _, creds, _ := newTestManager(t, Options{PollInterval: 10 * time.Millisecond})
	seedCreds(t, creds, "tv")

	var (
		mu    sync.Mutex
		calls []string
	)
	m.AddListener(func(Snapshot) {
		mu.Lock()
		calls = append(calls, "first")
		mu.Unlock()
	})
	m.AddListener(func(Snapshot) {
		mu.Lock()
		calls = append(calls, "second")
		mu.Unlock()
	})

	if err := m.Connect(context.Background(), "tv"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) >= 4
	})

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i+1 < len(calls); i += 2 {
		if calls[i] != "first" || calls[i+1] != "second" {
			t.Fatalf("listeners fired out of registration order: %v", calls)
		}
	}
}

func TestPollerReportsWindowLapse(t *testing.T) {
	clock := newFakeClock()
	m, _, creds, _ := newTestManager(t, Options{
		PollInterval:    10 * time.Millisecond,
		ActivityTimeout: 60 * time.Second,
	})
	m.now = clock.now
	seedCreds(t, creds, "tv")

	var (
		mu   sync.Mutex
		last *Snapshot
	)
	m.AddListener(func(s Snapshot) {
		mu.Lock()
		last = &s
		mu.Unlock()
	})

	if err := m.Connect(context.Background(), "tv"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last != nil && last.Connected
	})

	// No traffic past the window: the next ticks must flip connected.
	clock.advance(61 * time.Second)
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last != nil && !last.Connected
	})
}

func TestPollerStartReplacesTimer(t *testing.T) {
	m, _, creds, _ := newTestManager(t, Options{PollInterval: 10 * time.Millisecond})
	seedCreds(t, creds, "tv")

	var (
		mu    sync.Mutex
		ticks int
	)
	m.AddListener(func(Snapshot) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	if err := m.Connect(context.Background(), "tv"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	// Starting the poller again must replace the timer, not add one.
	m.mu.Lock()
	task := m.tasks["tv"]
	m.mu.Unlock()
	task.startPoller()

	mu.Lock()
	ticks = 0
	mu.Unlock()

	time.Sleep(105 * time.Millisecond)

	mu.Lock()
	got := ticks
	mu.Unlock()

	// One 10ms timer over ~100ms yields about 10 ticks; a duplicated
	// timer would roughly double that.
	if got > 15 {
		t.Errorf("tick rate suggests duplicated poller: %d ticks in 100ms", got)
	}
	if got < 5 {
		t.Errorf("poller barely ran: %d ticks in 100ms", got)
	}
}

func TestPollerStopsOnDisconnect(t *testing.T) {
	m, _, creds, _ := newTestManager(t, Options{PollInterval: 10 * time.Millisecond})
	seedCreds(t, creds, "tv")

	var (
		mu    sync.Mutex
		ticks int
	)
	m.AddListener(func(Snapshot) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	if err := m.Connect(context.Background(), "tv"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks > 0
	})

	if err := m.Disconnect("tv"); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	mu.Lock()
	after := ticks
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	final := ticks
	mu.Unlock()

	if final != after {
		t.Errorf("poller kept ticking after disconnect: %d -> %d", after, final)
	}
}
