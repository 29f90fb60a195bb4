package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the TV bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Scenes    SceneConfig     `yaml:"scenes"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig contains bridge instance identification.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SessionConfig contains the per-device connection timing model.
// All values are seconds unless noted.
type SessionConfig struct {
	// ReconnectDelay is how long after a failure the retry fires.
	ReconnectDelay int `yaml:"reconnect_delay"`

	// MinReconnectInterval throttles retries: a new retry is only scheduled
	// if at least this long has passed since the previous attempt. This
	// avoids retry storms against a TV that is simply off.
	MinReconnectInterval int `yaml:"min_reconnect_interval"`

	// ActivityTimeout is the liveness window: a device is live while
	// now - lastActivity < ActivityTimeout.
	ActivityTimeout int `yaml:"activity_timeout"`

	// PollInterval is how often each connected device's state is snapshotted.
	PollInterval int `yaml:"poll_interval"`

	// PairingCodeWait is how long startPairing waits for the TV to report
	// that the one-time code is on screen.
	PairingCodeWait int `yaml:"pairing_code_wait"`

	// PairingTTL bounds how long a started-but-never-completed pairing is
	// kept before its transient session is discarded. Minutes.
	PairingTTL int `yaml:"pairing_ttl"`
}

// SceneConfig contains the fixed delays used during scene replay.
// All values are milliseconds.
type SceneConfig struct {
	// AppSettleDelay is the pause after an app launch before further commands.
	AppSettleDelay int `yaml:"app_settle_delay"`

	// VolumeStepDelay separates discrete volume up/down presses so the TV
	// registers each step.
	VolumeStepDelay int `yaml:"volume_step_delay"`

	// KeyDelay separates keys in a scene's key sequence.
	KeyDelay int `yaml:"key_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	AuthToken string           `yaml:"auth_token"`
	TLS       TLSConfig        `yaml:"tls"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket state-stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains the optional state-broadcast broker settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig contains broker reconnection backoff settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains optional telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TVBRIDGE_SECTION_KEY
// For example: TVBRIDGE_DATABASE_PATH, TVBRIDGE_API_AUTH_TOKEN
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:   "tvbridge-001",
			Name: "TV Bridge",
		},
		Database: DatabaseConfig{
			Path:        "./data/tvbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Session: SessionConfig{
			ReconnectDelay:       10,
			MinReconnectInterval: 30,
			ActivityTimeout:      60,
			PollInterval:         10,
			PairingCodeWait:      3,
			PairingTTL:           5,
		},
		Scenes: SceneConfig{
			AppSettleDelay:  3000,
			VolumeStepDelay: 300,
			KeyDelay:        500,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8765,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tvbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TVBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("TVBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("TVBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("TVBRIDGE_API_AUTH_TOKEN"); v != "" {
		cfg.API.AuthToken = v
	}

	// MQTT
	if v := os.Getenv("TVBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TVBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TVBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("TVBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Session.ReconnectDelay < 1 {
		errs = append(errs, "session.reconnect_delay must be at least 1 second")
	}
	if c.Session.MinReconnectInterval < 1 {
		errs = append(errs, "session.min_reconnect_interval must be at least 1 second")
	}
	if c.Session.ActivityTimeout < 1 {
		errs = append(errs, "session.activity_timeout must be at least 1 second")
	}
	if c.Session.PollInterval < 1 {
		errs = append(errs, "session.poll_interval must be at least 1 second")
	}

	// The poller is what flips connected back to false when the activity
	// window closes; polling slower than the window makes liveness lag.
	if c.Session.PollInterval > c.Session.ActivityTimeout {
		errs = append(errs, "session.poll_interval must not exceed session.activity_timeout")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReconnectDelay returns the reconnect delay as a Duration.
func (c *SessionConfig) GetReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Second
}

// GetMinReconnectInterval returns the reconnect throttle window as a Duration.
func (c *SessionConfig) GetMinReconnectInterval() time.Duration {
	return time.Duration(c.MinReconnectInterval) * time.Second
}

// GetActivityTimeout returns the liveness window as a Duration.
func (c *SessionConfig) GetActivityTimeout() time.Duration {
	return time.Duration(c.ActivityTimeout) * time.Second
}

// GetPollInterval returns the state poll interval as a Duration.
func (c *SessionConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// GetPairingCodeWait returns the pairing code-display wait as a Duration.
func (c *SessionConfig) GetPairingCodeWait() time.Duration {
	return time.Duration(c.PairingCodeWait) * time.Second
}

// GetPairingTTL returns the pairing session TTL as a Duration.
func (c *SessionConfig) GetPairingTTL() time.Duration {
	return time.Duration(c.PairingTTL) * time.Minute
}

// GetAppSettleDelay returns the post-app-launch settle delay as a Duration.
func (c *SceneConfig) GetAppSettleDelay() time.Duration {
	return time.Duration(c.AppSettleDelay) * time.Millisecond
}

// GetVolumeStepDelay returns the inter-volume-step delay as a Duration.
func (c *SceneConfig) GetVolumeStepDelay() time.Duration {
	return time.Duration(c.VolumeStepDelay) * time.Millisecond
}

// GetKeyDelay returns the inter-key delay as a Duration.
func (c *SceneConfig) GetKeyDelay() time.Duration {
	return time.Duration(c.KeyDelay) * time.Millisecond
}
