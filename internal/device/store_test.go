package device

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStorePutGet(t *testing.T) {
	s := NewStore()

	d := &Device{
		ID:     "living-room",
		Host:   "192.168.1.50",
		Name:   "Living Room TV",
		State:  StateDisconnected,
		Volume: 20,
	}
	if err := s.Put(d); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get("living-room")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Host != "192.168.1.50" || got.Volume != 20 {
		t.Errorf("unexpected record: %+v", got)
	}

	// Mutating the returned copy must not touch the stored record.
	got.Volume = 99
	again, _ := s.Get("living-room")
	if again.Volume != 20 {
		t.Errorf("Get returned shared state, volume = %d", again.Volume)
	}

	// Mutating the original after Put must not either.
	d.Volume = 77
	again, _ = s.Get("living-room")
	if again.Volume != 20 {
		t.Errorf("Put kept caller's pointer, volume = %d", again.Volume)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePutInvalid(t *testing.T) {
	s := NewStore()
	if err := s.Put(nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("nil device: expected ErrInvalidDevice, got %v", err)
	}
	if err := s.Put(&Device{ID: "  "}); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("blank ID: expected ErrInvalidDevice, got %v", err)
	}
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore()
	if err := s.Put(&Device{ID: "tv", State: StateDisconnected}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	now := time.Now()
	err := s.Update("tv", func(d *Device) {
		d.State = StateConnected
		d.LastActivity = now
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := s.Get("tv")
	if got.State != StateConnected {
		t.Errorf("state = %s, want connected", got.State)
	}
	if !got.LastActivity.Equal(now) {
		t.Errorf("lastActivity not applied")
	}

	if err := s.Update("missing", func(*Device) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	_ = s.Put(&Device{ID: "tv"})

	if err := s.Delete("tv"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("tv"); !errors.Is(err, ErrNotFound) {
		t.Errorf("device still present after delete")
	}
	if err := s.Delete("tv"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestStoreListSorted(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"kitchen", "bedroom", "attic"} {
		_ = s.Put(&Device{ID: id})
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(list))
	}
	want := []string{"attic", "bedroom", "kitchen"}
	for i, d := range list {
		if d.ID != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, d.ID, want[i])
		}
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	_ = s.Put(&Device{ID: "tv"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Update("tv", func(d *Device) { d.Volume++ })
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Get("tv")
			s.List()
		}()
	}
	wg.Wait()

	got, _ := s.Get("tv")
	if got.Volume != 20 {
		t.Errorf("volume = %d after 20 increments, want 20", got.Volume)
	}
}
