// TV Bridge - Android TV remote-session hub
//
// This is the main entry point for the TV bridge. It pairs with Android
// TVs on the local network, holds one encrypted remote session per
// device, and exposes direct control, scenes, and synchronized group
// commands over a JSON HTTP API with a WebSocket state stream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/tvbridge/migrations"

	"github.com/nerrad567/tvbridge/internal/api"
	"github.com/nerrad567/tvbridge/internal/conn"
	"github.com/nerrad567/tvbridge/internal/device"
	"github.com/nerrad567/tvbridge/internal/infrastructure/config"
	"github.com/nerrad567/tvbridge/internal/infrastructure/database"
	"github.com/nerrad567/tvbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/tvbridge/internal/infrastructure/logging"
	"github.com/nerrad567/tvbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/tvbridge/internal/multiroom"
	"github.com/nerrad567/tvbridge/internal/pairing"
	"github.com/nerrad567/tvbridge/internal/scene"
	"github.com/nerrad567/tvbridge/internal/session/remote"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting TV bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device state store and persisted pairing credentials
	store := device.NewStore()
	credsRepo := device.NewSQLiteCredentialsRepository(db)

	// Session transport
	clientName := cfg.Bridge.Name
	if clientName == "" {
		clientName = "tvbridge"
	}
	dialer := remote.NewDialer(clientName)

	// Connection manager: one session per device, activity-window liveness
	manager := conn.NewManager(conn.Options{
		Store:                store,
		Credentials:          credsRepo,
		Dialer:               dialer,
		ReconnectDelay:       cfg.Session.GetReconnectDelay(),
		MinReconnectInterval: cfg.Session.GetMinReconnectInterval(),
		ActivityTimeout:      cfg.Session.GetActivityTimeout(),
		PollInterval:         cfg.Session.GetPollInterval(),
	})
	manager.SetLogger(log)
	defer func() {
		log.Info("closing device sessions")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing connection manager", "error", closeErr)
		}
	}()

	// Pairing coordinator
	coordinator := pairing.NewCoordinator(pairing.Deps{
		Dialer:      dialer,
		Store:       store,
		Credentials: credsRepo,
		Connector:   manager,
		CodeWait:    cfg.Session.GetPairingCodeWait(),
		TTL:         cfg.Session.GetPairingTTL(),
	})
	coordinator.SetLogger(log)
	defer func() {
		if closeErr := coordinator.Close(); closeErr != nil {
			log.Error("error closing pairing coordinator", "error", closeErr)
		}
	}()

	// Scene engine
	sceneEngine := scene.NewEngine(scene.Deps{
		Repository:      scene.NewSQLiteRepository(db),
		Store:           store,
		Controller:      manager,
		AppSettleDelay:  cfg.Scenes.GetAppSettleDelay(),
		VolumeStepDelay: cfg.Scenes.GetVolumeStepDelay(),
		KeyDelay:        cfg.Scenes.GetKeyDelay(),
	})
	sceneEngine.SetLogger(log)

	// Sync dispatcher
	dispatcher := multiroom.NewDispatcher(multiroom.Deps{
		Repository: multiroom.NewSQLiteRepository(db),
		Store:      store,
		Controller: manager,
		Volume:     sceneEngine,
	})
	dispatcher.SetLogger(log)

	// MQTT state broadcast (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		wireMQTTPublisher(manager, mqttClient, cfg.MQTT, log)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		manager.AddListener(func(snap conn.Snapshot) {
			influxClient.WriteDeviceState(snap.DeviceID, snap.Connected, snap.PowerState, snap.Muted, snap.Volume, snap.CurrentApp)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API and WebSocket state stream
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Manager:     manager,
		Pairing:     coordinator,
		Scenes:      sceneEngine,
		Sync:        dispatcher,
		Credentials: credsRepo,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Reconnect previously paired devices, best effort. TVs that are off
	// fall into the throttled retry path.
	reconnectPaired(ctx, manager, credsRepo, log)

	if healthErr := healthCheck(ctx, db, mqttClient, influxClient, apiServer); healthErr != nil {
		return fmt.Errorf("health check failed: %w", healthErr)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TVBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TVBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// reconnectPaired attempts a session for every device with stored
// credentials. Failures are logged, not fatal: the manager's retry
// throttle takes over.
func reconnectPaired(ctx context.Context, manager *conn.Manager, repo device.CredentialsRepository, log *logging.Logger) {
	stored, err := repo.List(ctx)
	if err != nil {
		log.Error("listing stored credentials", "error", err)
		return
	}
	for _, creds := range stored {
		if err := manager.Connect(ctx, creds.DeviceID); err != nil {
			log.Warn("startup reconnect failed", "device_id", creds.DeviceID, "error", err)
		}
	}
	if len(stored) > 0 {
		log.Info("startup reconnect attempted", "devices", len(stored))
	}
}

// wireMQTTPublisher publishes every state snapshot to the device's
// retained state topic.
func wireMQTTPublisher(manager *conn.Manager, client *mqtt.Client, cfg config.MQTTConfig, log *logging.Logger) {
	topics := mqtt.Topics{}
	manager.AddListener(func(snap conn.Snapshot) {
		payload, err := snapshotPayload(snap)
		if err != nil {
			log.Error("encoding state snapshot", "error", err)
			return
		}
		if err := client.Publish(topics.DeviceState(snap.DeviceID), payload, byte(cfg.QoS), true); err != nil {
			log.Warn("publishing state snapshot", "device_id", snap.DeviceID, "error", err)
		}
	})
}

// snapshotPayload encodes one state snapshot for the MQTT state topic.
func snapshotPayload(snap conn.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
