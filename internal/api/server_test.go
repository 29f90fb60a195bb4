package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/tvbridge/internal/conn"
	"github.com/nerrad567/tvbridge/internal/device"
	"github.com/nerrad567/tvbridge/internal/infrastructure/config"
	"github.com/nerrad567/tvbridge/internal/infrastructure/logging"
	"github.com/nerrad567/tvbridge/internal/multiroom"
	"github.com/nerrad567/tvbridge/internal/pairing"
	"github.com/nerrad567/tvbridge/internal/scene"
	"github.com/nerrad567/tvbridge/internal/session"
)

// fakeClient is a scripted session client.
type fakeClient struct {
	mu     sync.Mutex
	events chan session.Event
	cmdErr error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan session.Event, 16)}
}

func (f *fakeClient) Start(context.Context) error          { return nil }
func (f *fakeClient) Events() <-chan session.Event         { return f.events }
func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}
func (f *fakeClient) SendText(context.Context, string) error { return f.err() }

func (f *fakeClient) SendKey(context.Context, int, string) error { return f.err() }
func (f *fakeClient) LaunchApp(context.Context, string) error    { return f.err() }

func (f *fakeClient) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdErr
}

// fakeDialer hands out fakeClients.
type fakeDialer struct{}

func (fakeDialer) Dial(session.Config) (session.Client, error) {
	return newFakeClient(), nil
}

func (fakeDialer) DialPairing(string, string) (session.PairingClient, error) {
	return nil, session.ErrTransport
}

// memCreds is an in-memory credentials repository.
type memCreds struct {
	mu    sync.Mutex
	items map[string]*device.Credentials
}

func newMemCreds() *memCreds {
	return &memCreds{items: make(map[string]*device.Credentials)}
}

func (m *memCreds) Save(_ context.Context, c *device.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.items[c.DeviceID] = &cp
	return nil
}

func (m *memCreds) Get(_ context.Context, id string) (*device.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, device.ErrCredentialsNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCreds) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return device.ErrCredentialsNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memCreds) List(_ context.Context) ([]*device.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*device.Credentials, 0, len(m.items))
	for _, c := range m.items {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

// memSceneRepo is an in-memory scene repository.
type memSceneRepo struct {
	mu    sync.Mutex
	items map[string]*scene.Scene
}

func newMemSceneRepo() *memSceneRepo {
	return &memSceneRepo{items: make(map[string]*scene.Scene)}
}

func (m *memSceneRepo) Save(_ context.Context, s *scene.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.Name] = s.DeepCopy()
	return nil
}

func (m *memSceneRepo) Get(_ context.Context, name string) (*scene.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[name]
	if !ok {
		return nil, scene.ErrSceneNotFound
	}
	return s.DeepCopy(), nil
}

func (m *memSceneRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[name]; !ok {
		return scene.ErrSceneNotFound
	}
	delete(m.items, name)
	return nil
}

func (m *memSceneRepo) List(_ context.Context) ([]*scene.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*scene.Scene, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// memGroupRepo is an in-memory sync group repository.
type memGroupRepo struct {
	mu    sync.Mutex
	items map[string]*multiroom.SyncGroup
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{items: make(map[string]*multiroom.SyncGroup)}
}

func (m *memGroupRepo) Save(_ context.Context, g *multiroom.SyncGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[g.Name] = g.DeepCopy()
	return nil
}

func (m *memGroupRepo) Get(_ context.Context, name string) (*multiroom.SyncGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.items[name]
	if !ok {
		return nil, multiroom.ErrSyncGroupNotFound
	}
	return g.DeepCopy(), nil
}

func (m *memGroupRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[name]; !ok {
		return multiroom.ErrSyncGroupNotFound
	}
	delete(m.items, name)
	return nil
}

func (m *memGroupRepo) List(_ context.Context) ([]*multiroom.SyncGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*multiroom.SyncGroup, 0, len(m.items))
	for _, g := range m.items {
		out = append(out, g.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// testEnv bundles the server under test with its collaborators.
type testEnv struct {
	server  *Server
	router  http.Handler
	store   *device.Store
	creds   *memCreds
	manager *conn.Manager
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()

	store := device.NewStore()
	creds := newMemCreds()
	manager := conn.NewManager(conn.Options{
		Store:                store,
		Credentials:          creds,
		Dialer:               fakeDialer{},
		ReconnectDelay:       time.Hour,
		MinReconnectInterval: time.Hour,
		ActivityTimeout:      time.Minute,
		PollInterval:         time.Hour,
	})
	t.Cleanup(func() { manager.Close() }) //nolint:errcheck

	coordinator := pairing.NewCoordinator(pairing.Deps{
		Dialer:      fakeDialer{},
		Store:       store,
		Credentials: creds,
		Connector:   manager,
	})
	t.Cleanup(func() { coordinator.Close() }) //nolint:errcheck

	engine := scene.NewEngine(scene.Deps{
		Repository:      newMemSceneRepo(),
		Store:           store,
		Controller:      manager,
		AppSettleDelay:  time.Millisecond,
		VolumeStepDelay: time.Millisecond,
		KeyDelay:        time.Millisecond,
	})

	dispatcher := multiroom.NewDispatcher(multiroom.Deps{
		Repository: newMemGroupRepo(),
		Store:      store,
		Controller: manager,
		Volume:     engine,
	})

	srv, err := New(Deps{
		Config:      cfg,
		WS:          config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10},
		Logger:      logging.Default(),
		Manager:     manager,
		Pairing:     coordinator,
		Scenes:      engine,
		Sync:        dispatcher,
		Credentials: creds,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		server:  srv,
		router:  srv.buildRouter(),
		store:   store,
		creds:   creds,
		manager: manager,
	}
}

// do performs a request against the router and decodes the JSON body.
func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, decoded
}

// pairDevice stores credentials so the device counts as paired.
func (e *testEnv) pairDevice(t *testing.T, id string) {
	t.Helper()
	err := e.creds.Save(context.Background(), &device.Credentials{
		DeviceID: id,
		Host:     "10.0.0.5",
		Material: session.Credentials{Certificate: []byte("cert"), PrivateKey: []byte("key")},
		PairedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("saving credentials: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodGet, "/health", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestStatusUnknownDeviceReturnsNotFound(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodGet, "/status/ghost", nil)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if body["error"] == nil || body["error"] == "" {
		t.Error("expected error message in failure envelope")
	}
}

func TestConnectWithoutCredentialsFails(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodPost, "/connect", map[string]any{
		"deviceId": "tv-lounge",
	})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestConnectAndStatusRoundTrip(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.pairDevice(t, "tv-lounge")

	code, body := env.do(t, http.MethodPost, "/connect", map[string]any{
		"deviceId": "tv-lounge",
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("connect = %d %v, want 200 success", code, body)
	}

	// Second connect is idempotent.
	code, body = env.do(t, http.MethodPost, "/connect", map[string]any{
		"deviceId": "tv-lounge",
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("repeat connect = %d %v, want 200 success", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/status/tv-lounge", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["connected"] != true {
		t.Errorf("connected = %v, want true", body["connected"])
	}
	state, ok := body["state"].(map[string]any)
	if !ok {
		t.Fatalf("state missing from response: %v", body)
	}
	if _, ok := state["lastActivity"]; !ok {
		t.Error("expected lastActivity on a connected device")
	}
}

func TestConnectStoresSuppliedCredentials(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodPost, "/connect", map[string]any{
		"deviceId":    "tv-den",
		"host":        "10.0.0.9",
		"certificate": []byte("pem-cert"),
		"privateKey":  []byte("pem-key"),
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("connect = %d %v, want 200 success", code, body)
	}

	stored, err := env.creds.Get(context.Background(), "tv-den")
	if err != nil {
		t.Fatalf("credentials not persisted: %v", err)
	}
	if stored.Host != "10.0.0.9" {
		t.Errorf("host = %q, want 10.0.0.9", stored.Host)
	}
	if string(stored.Material.Certificate) != "pem-cert" {
		t.Errorf("certificate = %q, want pem-cert", stored.Material.Certificate)
	}
}

func TestKeyWithoutConnectionFails(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodPost, "/key", map[string]any{
		"deviceId": "tv-lounge",
		"keyCode":  24,
	})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestPairStartMissingParameters(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodPost, "/pair/start", map[string]any{
		"deviceId": "tv-lounge",
	})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestPairCompleteWithoutStart(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodPost, "/pair/complete", map[string]any{
		"deviceId": "tv-lounge",
		"code":     "AB12CD",
	})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestSceneSaveExecuteDelete(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.pairDevice(t, "tv-lounge")
	env.do(t, http.MethodPost, "/connect", map[string]any{"deviceId": "tv-lounge"})

	code, body := env.do(t, http.MethodPost, "/scene/save", map[string]any{
		"sceneName": "movie-night",
		"scene": map[string]any{
			"keys": []map[string]any{{"code": 26}},
		},
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("save = %d %v, want 200 success", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/scene/execute", map[string]any{
		"sceneName": "movie-night",
		"deviceId":  "tv-lounge",
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("execute = %d %v, want 200 success", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/scenes", nil)
	if code != http.StatusOK {
		t.Fatalf("list = %d, want 200", code)
	}
	scenes, ok := body["scenes"].([]any)
	if !ok || len(scenes) != 1 {
		t.Fatalf("scenes = %v, want one entry", body["scenes"])
	}

	code, _ = env.do(t, http.MethodDelete, "/scene/movie-night", nil)
	if code != http.StatusOK {
		t.Fatalf("delete = %d, want 200", code)
	}
}

func TestSceneExecuteUnknownSceneReturnsNotFound(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodPost, "/scene/execute", map[string]any{
		"sceneName": "ghost",
		"deviceId":  "tv-lounge",
	})
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestSceneDeleteMissingReturnsNotFound(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodDelete, "/scene/ghost", nil)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestSyncCommandPartialFailure(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	for _, id := range []string{"tv-a", "tv-b", "tv-c"} {
		env.pairDevice(t, id)
		code, body := env.do(t, http.MethodPost, "/connect", map[string]any{"deviceId": id})
		if code != http.StatusOK || body["success"] != true {
			t.Fatalf("connect %s = %d %v", id, code, body)
		}
	}

	code, body := env.do(t, http.MethodPost, "/sync/create", map[string]any{
		"groupName": "all-tvs",
		"deviceIds": []string{"tv-a", "tv-b", "tv-c"},
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("create = %d %v, want 200 success", code, body)
	}

	// Take one member's session down; its command must fail while the
	// group call still succeeds.
	if err := env.manager.Disconnect("tv-b"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	code, body = env.do(t, http.MethodPost, "/sync/command", map[string]any{
		"groupName": "all-tvs",
		"command":   map[string]any{"type": "key", "key_code": 24},
	})
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["success"] != true {
		t.Fatalf("success = %v, want true despite member failure", body["success"])
	}

	results, ok := body["results"].([]any)
	if !ok || len(results) != 3 {
		t.Fatalf("results = %v, want 3 entries", body["results"])
	}
	failures := 0
	for _, raw := range results {
		entry := raw.(map[string]any) //nolint:errcheck
		if entry["success"] == false {
			failures++
			if entry["device_id"] != "tv-b" {
				t.Errorf("failed member = %v, want tv-b", entry["device_id"])
			}
			if entry["error"] == nil || entry["error"] == "" {
				t.Error("expected error string on failed member")
			}
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want exactly 1", failures)
	}
}

func TestSyncCreateRequiresTwoMembers(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.pairDevice(t, "tv-a")
	env.do(t, http.MethodPost, "/connect", map[string]any{"deviceId": "tv-a"})

	code, body := env.do(t, http.MethodPost, "/sync/create", map[string]any{
		"groupName": "solo",
		"deviceIds": []string{"tv-a"},
	})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestSyncDeleteMissingReturnsNotFound(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	code, body := env.do(t, http.MethodDelete, "/sync/ghost", nil)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestUnpairMissingDeviceSucceeds(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	// Unpair is idempotent teardown; a missing device is not an error.
	code, body := env.do(t, http.MethodPost, "/unpair", map[string]any{
		"deviceId": "ghost",
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("unpair = %d %v, want 200 success", code, body)
	}
}

func TestInvalidJSONBodyFails(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	req := httptest.NewRequest(http.MethodPost, "/connect", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{AuthToken: "secret-token"})

	// Health stays open.
	code, _ := env.do(t, http.MethodGet, "/health", nil)
	if code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", code)
	}

	// Protected route without a token is rejected.
	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Bearer token grants access.
	req = httptest.NewRequest(http.MethodGet, "/devices", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", rec.Code)
	}

	// Query token works for WebSocket-style access.
	req = httptest.NewRequest(http.MethodGet, "/devices?token=secret-token", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with query token = %d, want 200", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID header")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "given-id")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "given-id" {
		t.Errorf("X-Request-ID = %q, want given-id", got)
	}
}
