package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: test-bridge
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Session.ReconnectDelay != 10 {
		t.Errorf("ReconnectDelay = %d, want 10", cfg.Session.ReconnectDelay)
	}
	if cfg.Session.ActivityTimeout != 60 {
		t.Errorf("ActivityTimeout = %d, want 60", cfg.Session.ActivityTimeout)
	}
	if cfg.Scenes.VolumeStepDelay != 300 {
		t.Errorf("VolumeStepDelay = %d, want 300", cfg.Scenes.VolumeStepDelay)
	}
	if cfg.API.Port != 8765 {
		t.Errorf("API.Port = %d, want 8765", cfg.API.Port)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: lounge-bridge
session:
  reconnect_delay: 5
  min_reconnect_interval: 15
  activity_timeout: 45
  poll_interval: 5
api:
  port: 9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "lounge-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "lounge-bridge")
	}
	if got := cfg.Session.GetReconnectDelay(); got != 5*time.Second {
		t.Errorf("GetReconnectDelay() = %v, want 5s", got)
	}
	if got := cfg.Session.GetMinReconnectInterval(); got != 15*time.Second {
		t.Errorf("GetMinReconnectInterval() = %v, want 15s", got)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: test-bridge
database:
  path: ./from-file.db
`)

	t.Setenv("TVBRIDGE_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("TVBRIDGE_API_AUTH_TOKEN", "secret-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.AuthToken != "secret-token" {
		t.Errorf("API.AuthToken = %q, want env override", cfg.API.AuthToken)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			modify:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "empty bridge id",
			modify:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: "bridge.id",
		},
		{
			name:    "empty database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "invalid qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "zero reconnect delay",
			modify:  func(c *Config) { c.Session.ReconnectDelay = 0 },
			wantErr: "reconnect_delay",
		},
		{
			name: "poll slower than activity window",
			modify: func(c *Config) {
				c.Session.PollInterval = 120
				c.Session.ActivityTimeout = 60
			},
			wantErr: "poll_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
