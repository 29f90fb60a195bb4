package multiroom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/tvbridge/internal/device"
)

// memRepo is an in-memory group repository.
type memRepo struct {
	mu sync.Mutex
	m  map[string]*SyncGroup
}

func newMemRepo() *memRepo {
	return &memRepo{m: make(map[string]*SyncGroup)}
}

func (r *memRepo) Save(_ context.Context, g *SyncGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[g.Name] = g.DeepCopy()
	return nil
}

func (r *memRepo) Get(_ context.Context, name string) (*SyncGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSyncGroupNotFound, name)
	}
	return g.DeepCopy(), nil
}

func (r *memRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[name]; !ok {
		return fmt.Errorf("%w: %q", ErrSyncGroupNotFound, name)
	}
	delete(r.m, name)
	return nil
}

func (r *memRepo) List(context.Context) ([]*SyncGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*SyncGroup, 0, len(r.m))
	for _, g := range r.m {
		out = append(out, g.DeepCopy())
	}
	return out, nil
}

// fakeController scripts per-device command outcomes.
type fakeController struct {
	mu      sync.Mutex
	live    map[string]bool
	failFor map[string]error
	ops     []string
}

func newFakeController() *fakeController {
	return &fakeController{
		live:    make(map[string]bool),
		failFor: make(map[string]error),
	}
}

func (c *fakeController) SendKey(_ context.Context, deviceID string, keyCode int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[deviceID]; err != nil {
		return err
	}
	c.ops = append(c.ops, fmt.Sprintf("key:%s:%d", deviceID, keyCode))
	return nil
}

func (c *fakeController) LaunchApp(_ context.Context, deviceID, appURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[deviceID]; err != nil {
		return err
	}
	c.ops = append(c.ops, fmt.Sprintf("app:%s:%s", deviceID, appURL))
	return nil
}

func (c *fakeController) IsLive(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live[deviceID]
}

func (c *fakeController) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}

// fakeVolume records volume targets.
type fakeVolume struct {
	mu      sync.Mutex
	targets map[string]int
}

func (v *fakeVolume) SetVolume(_ context.Context, deviceID string, target int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.targets == nil {
		v.targets = make(map[string]int)
	}
	v.targets[deviceID] = target
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *memRepo, *device.Store, *fakeController, *fakeVolume) {
	t.Helper()

	repo := newMemRepo()
	store := device.NewStore()
	ctrl := newFakeController()
	vol := &fakeVolume{}

	d := NewDispatcher(Deps{
		Repository: repo,
		Store:      store,
		Controller: ctrl,
		Volume:     vol,
	})
	return d, repo, store, ctrl, vol
}

func liveDevice(t *testing.T, store *device.Store, ctrl *fakeController, id string) {
	t.Helper()
	err := store.Put(&device.Device{
		ID:           id,
		State:        device.StateConnected,
		LastActivity: time.Now(),
	})
	if err != nil {
		t.Fatalf("seeding device %s: %v", id, err)
	}
	ctrl.live[id] = true
}

func TestCreateGroupRequiresTwoMembers(t *testing.T) {
	d, _, store, ctrl, _ := newTestDispatcher(t)
	liveDevice(t, store, ctrl, "a")

	err := d.CreateGroup(context.Background(), "solo", []string{"a"})
	if !errors.Is(err, ErrInsufficientGroupSize) {
		t.Errorf("expected ErrInsufficientGroupSize, got %v", err)
	}
}

func TestCreateGroupRequiresLiveMembers(t *testing.T) {
	d, _, store, ctrl, _ := newTestDispatcher(t)
	liveDevice(t, store, ctrl, "a")
	// "b" exists but its activity window has lapsed.
	_ = store.Put(&device.Device{ID: "b", State: device.StateConnected})

	err := d.CreateGroup(context.Background(), "pair", []string{"a", "b"})
	if !errors.Is(err, ErrMemberNotConnected) {
		t.Errorf("expected ErrMemberNotConnected, got %v", err)
	}

	// Unknown member.
	err = d.CreateGroup(context.Background(), "pair", []string{"a", "ghost"})
	if !errors.Is(err, ErrMemberNotConnected) {
		t.Errorf("unknown member: expected ErrMemberNotConnected, got %v", err)
	}
}

func TestCreateGroupRejectsDuplicates(t *testing.T) {
	d, _, store, ctrl, _ := newTestDispatcher(t)
	liveDevice(t, store, ctrl, "a")

	err := d.CreateGroup(context.Background(), "dup", []string{"a", "a"})
	if !errors.Is(err, ErrInvalidGroup) {
		t.Errorf("expected ErrInvalidGroup, got %v", err)
	}
}

func TestCreateGroupSetsPrimary(t *testing.T) {
	d, repo, store, ctrl, _ := newTestDispatcher(t)
	for _, id := range []string{"living", "kitchen", "bedroom"} {
		liveDevice(t, store, ctrl, id)
	}

	err := d.CreateGroup(context.Background(), "all", []string{"living", "kitchen", "bedroom"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	g, err := repo.Get(context.Background(), "all")
	if err != nil {
		t.Fatalf("group not stored: %v", err)
	}
	if g.Primary != "living" {
		t.Errorf("primary = %s, want first member", g.Primary)
	}
	if len(g.DeviceIDs) != 3 {
		t.Errorf("members = %v", g.DeviceIDs)
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	d, _, store, ctrl, _ := newTestDispatcher(t)
	for _, id := range []string{"a", "b", "c"} {
		liveDevice(t, store, ctrl, id)
	}
	if err := d.CreateGroup(context.Background(), "trio", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	// One member drops after creation; dispatch must not re-validate.
	ctrl.failFor["b"] = errors.New("device not connected")

	results, err := d.Dispatch(context.Background(), "trio",
		Command{Type: CommandKey, KeyCode: 26, KeyName: "KEYCODE_POWER"})
	if err != nil {
		t.Fatalf("Dispatch failed despite member being down: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results length = %d, want 3", len(results))
	}

	failures := 0
	for _, r := range results {
		if !r.Success {
			failures++
			if r.DeviceID != "b" {
				t.Errorf("wrong device failed: %s", r.DeviceID)
			}
			if r.Error == "" {
				t.Errorf("failed result carries no error string")
			}
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want exactly 1", failures)
	}

	// Results come back in member order.
	for i, want := range []string{"a", "b", "c"} {
		if results[i].DeviceID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].DeviceID, want)
		}
	}
}

func TestDispatchUnknownGroup(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), "ghost", Command{Type: CommandKey, KeyCode: 26})
	if !errors.Is(err, ErrSyncGroupNotFound) {
		t.Errorf("expected ErrSyncGroupNotFound, got %v", err)
	}
}

func TestDispatchInvalidCommand(t *testing.T) {
	d, _, store, ctrl, _ := newTestDispatcher(t)
	liveDevice(t, store, ctrl, "a")
	liveDevice(t, store, ctrl, "b")
	if err := d.CreateGroup(context.Background(), "pair", []string{"a", "b"}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	tests := []Command{
		{Type: "reboot"},
		{Type: CommandApp},
		{Type: CommandVolume, Volume: 150},
		{Type: CommandKey, KeyCode: -1},
	}
	for _, cmd := range tests {
		if _, err := d.Dispatch(context.Background(), "pair", cmd); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Dispatch(%+v): expected ErrInvalidCommand, got %v", cmd, err)
		}
	}
	if got := ctrl.recorded(); len(got) != 0 {
		t.Errorf("invalid commands reached devices: %v", got)
	}
}

func TestDispatchVolumeCommand(t *testing.T) {
	d, _, store, ctrl, vol := newTestDispatcher(t)
	liveDevice(t, store, ctrl, "a")
	liveDevice(t, store, ctrl, "b")
	if err := d.CreateGroup(context.Background(), "pair", []string{"a", "b"}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	results, err := d.Dispatch(context.Background(), "pair",
		Command{Type: CommandVolume, Volume: 30})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("member %s failed: %s", r.DeviceID, r.Error)
		}
	}
	if vol.targets["a"] != 30 || vol.targets["b"] != 30 {
		t.Errorf("volume targets = %v, want 30 for both", vol.targets)
	}
}

func TestDeleteGroupMissing(t *testing.T) {
	d, repo, store, ctrl, _ := newTestDispatcher(t)
	liveDevice(t, store, ctrl, "a")
	liveDevice(t, store, ctrl, "b")
	if err := d.CreateGroup(context.Background(), "keep", []string{"a", "b"}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	err := d.DeleteGroup(context.Background(), "ghost")
	if !errors.Is(err, ErrSyncGroupNotFound) {
		t.Errorf("expected ErrSyncGroupNotFound, got %v", err)
	}

	// The miss must leave existing groups untouched.
	if _, err := repo.Get(context.Background(), "keep"); err != nil {
		t.Errorf("existing group disturbed by failed delete: %v", err)
	}
}
