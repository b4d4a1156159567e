// Package config handles configuration loading, validation, and persistence
// for the Beacon browser master.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir   = "config"
	DefaultConfigFile  = "config.json"
	DefaultBrowserPort = 27010
	DefaultStatusPort  = 5000

	// DefaultRefreshIntervalSec is the fallback list refresh interval.
	DefaultRefreshIntervalSec = 1200
)

// Merge priority modes for combining the boosted API list with the local list.
const (
	MergePriorityHigh = "high" // local list first, API appended
	MergePriorityLow  = "low"  // API list first, local appended
	MergePriorityOnly = "only" // local list only
)

// Config is the root configuration structure for Beacon.
type Config struct {
	mu   sync.RWMutex
	path string

	BrowserData     BrowserData     `json:"browser_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// BrowserData contains the discovery service configuration: the UDP
// endpoint, the two upstream list sources, and the admission limits.
type BrowserData struct {
	// UDP endpoint
	BindHost string `json:"udp_bind_host"`
	BindPort int    `json:"udp_bind_port"`

	// Boosted server list API
	BoostedAPIURL      string `json:"boosted_api_url"`
	RefreshIntervalSec int    `json:"list_refresh_interval_sec"`

	// Local server list
	LocalListPath string `json:"local_list_path"`
	MergePriority string `json:"merge_priority"` // high | low | only

	// Connection audit log
	LoggingEnabled bool   `json:"connection_logging_enabled"`
	AuditFilePath  string `json:"connection_log_file"`
	AuditAPIURL    string `json:"connection_log_api_url"`
	AuditMaxQueue  int    `json:"connection_log_max_queue"`

	// Admission limits
	MaxConnectionsPerIP   int `json:"max_connections_per_ip"`
	RateWindowSec         int `json:"rate_window_sec"`
	MaxTrackedConnections int `json:"max_tracked_connections"`
}

// ApplicationData contains ambient application configuration.
type ApplicationData struct {
	Timers  TimerConfig   `json:"timers"`
	API     APIConfig     `json:"api"`
	MQTT    MQTTConfig    `json:"mqtt"`
	Logging LoggingConfig `json:"logging"`
}

// TimerConfig holds background task interval settings.
type TimerConfig struct {
	AuditFlushInterval int `json:"audit_flush_interval_sec"`
}

// APIConfig holds the read-only status REST API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	ClientID  string `json:"client_id"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BrowserData: BrowserData{
			BindHost:              "0.0.0.0",
			BindPort:              DefaultBrowserPort,
			RefreshIntervalSec:    DefaultRefreshIntervalSec,
			LocalListPath:         "config/servers.json",
			MergePriority:         MergePriorityHigh,
			LoggingEnabled:        true,
			AuditFilePath:         "logs/connections.csv",
			AuditMaxQueue:         10000,
			MaxConnectionsPerIP:   5,
			RateWindowSec:         60,
			MaxTrackedConnections: 2000,
		},
		ApplicationData: ApplicationData{
			Timers: TimerConfig{
				AuditFlushInterval: 60,
			},
			API: APIConfig{
				Enabled:      true,
				Port:         DefaultStatusPort,
				RateLimitRPS: 100,
			},
			MQTT: MQTTConfig{
				Enabled: false,
				Port:    8883,
				UseTLS:  true,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file, creating a default one when
// none exists yet.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetBrowserData returns a copy of the browser configuration.
func (c *Config) GetBrowserData() BrowserData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BrowserData
}

// SetBrowserData updates the browser configuration.
func (c *Config) SetBrowserData(data BrowserData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BrowserData = data
}

// GetApplicationData returns a copy of the application configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// UpdateBrowserField updates a specific field in the browser data by its
// JSON key, used by the CLI setconfig command.
func (c *Config) UpdateBrowserField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.BrowserData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	if _, ok := m[key]; !ok {
		return fmt.Errorf("unknown config field: %s", key)
	}
	m[key] = value

	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.BrowserData); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
