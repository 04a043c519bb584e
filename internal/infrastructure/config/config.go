package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the SWS bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Controller ControllerConfig `yaml:"controller"`
	Relay      RelayConfig      `yaml:"relay"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Axes       []AxisConfig     `yaml:"axes"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig identifies the observatory this bridge serves.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// UIDir replaces the embedded hand controller with files on disk.
	UIDir string `yaml:"ui_dir"`
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

// WebSocketConfig contains command console settings.
type WebSocketConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxMessageSize int  `yaml:"max_message_size"`
	PingInterval   int  `yaml:"ping_interval"`
	PongTimeout    int  `yaml:"pong_timeout"`
}

// ControllerConfig describes the link to the mount controller.
type ControllerConfig struct {
	// Connection is the controller URL.
	// Supported formats:
	//   - "serial:///dev/ttyUSB0?baud=9600"
	//   - "tcp://192.168.0.1:9999"
	//   - "sim://" (in-process simulator)
	Connection string `yaml:"connection"`

	// Timeout bounds a single command round-trip.
	Timeout time.Duration `yaml:"timeout"`

	// BufferSize is the command/response capacity in bytes, terminator included.
	// 40 matches the controller firmware; larger values widen the bound.
	BufferSize int `yaml:"buffer_size"`
}

// RelayConfig contains relay limits.
type RelayConfig struct {
	// CatalogMaxRecords caps the records read from one catalog stream before
	// the stream is treated as unterminated.
	CatalogMaxRecords int `yaml:"catalog_max_records"`
}

// SchedulerConfig contains cooperative scheduler settings.
type SchedulerConfig struct {
	// Tick is the timer dispatch resolution.
	Tick time.Duration `yaml:"tick"`

	// LatencyBudget is the token wait a timer may suffer before the run is
	// counted as late.
	LatencyBudget time.Duration `yaml:"latency_budget"`
}

// AxisConfig maps one CW/CCW encoder onto its GPIO lines.
type AxisConfig struct {
	Name         string        `yaml:"name"`
	CWPin        int           `yaml:"cw_pin"`
	CCWPin       int           `yaml:"ccw_pin"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// TelemetryConfig contains axis position publishing settings.
type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// CommandTopic enables relaying commands received on sws/<site>/command.
	CommandTopic bool `yaml:"command_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// ClientID defaults to swsbridge-<site> when empty.
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SWS_SECTION_KEY
// For example: SWS_CONTROLLER_CONNECTION, SWS_API_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "observatory",
			Name: "SWS Bridge",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			MaxMessageSize: 256,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Controller: ControllerConfig{
			Connection: "sim://",
			Timeout:    time.Second,
			BufferSize: 40,
		},
		Relay: RelayConfig{
			CatalogMaxRecords: 2048,
		},
		Scheduler: SchedulerConfig{
			Tick:          5 * time.Millisecond,
			LatencyBudget: 50 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			Enabled:  true,
			Interval: time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/swsbridge.log",
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Controller
	if v := os.Getenv("SWS_CONTROLLER_CONNECTION"); v != "" {
		cfg.Controller.Connection = v
	}

	// API
	if v := os.Getenv("SWS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SWS_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("SWS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SWS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SWS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SWS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SWS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Controller.Connection == "" {
		errs = append(errs, "controller.connection is required")
	}
	// One byte is reserved for the terminator, so anything below 2 cannot
	// carry a command at all.
	if c.Controller.BufferSize < 2 {
		errs = append(errs, "controller.buffer_size must be at least 2")
	}
	if c.Controller.Timeout <= 0 {
		errs = append(errs, "controller.timeout must be positive")
	}

	if c.Relay.CatalogMaxRecords < 1 {
		errs = append(errs, "relay.catalog_max_records must be positive")
	}

	if c.Scheduler.Tick <= 0 {
		errs = append(errs, "scheduler.tick must be positive")
	}

	seen := make(map[string]bool, len(c.Axes))
	for i, axis := range c.Axes {
		if axis.Name == "" {
			errs = append(errs, fmt.Sprintf("axes[%d].name is required", i))
		} else if seen[axis.Name] {
			errs = append(errs, fmt.Sprintf("axes[%d].name %q is duplicated", i, axis.Name))
		}
		seen[axis.Name] = true
		if axis.CWPin == axis.CCWPin {
			errs = append(errs, fmt.Sprintf("axes[%d] cw_pin and ccw_pin must differ", i))
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
