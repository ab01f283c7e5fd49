// Package config provides configuration management for the go-csms management node.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// General settings
	LogLevel     string `mapstructure:"log_level"`
	StationsFile string `mapstructure:"stations_file"`

	// Management node settings
	Node struct {
		ID                     string        `mapstructure:"id"`
		DefaultRequestTimeout  time.Duration `mapstructure:"default_request_timeout"`
		LockTimeout            time.Duration `mapstructure:"lock_timeout"`
		VetoActiveTransactions bool          `mapstructure:"veto_active_transactions"`
	} `mapstructure:"node"`

	// Station facing websocket server
	Server struct {
		Host           string        `mapstructure:"host"`
		Port           int           `mapstructure:"port"`
		Path           string        `mapstructure:"path"`
		Subprotocols   []string      `mapstructure:"subprotocols"`
		PingInterval   time.Duration `mapstructure:"ping_interval"`
		PongTimeout    time.Duration `mapstructure:"pong_timeout"`
		MaxMessageSize int64         `mapstructure:"max_message_size"`
		HeartbeatEvery int           `mapstructure:"heartbeat_interval"`
	} `mapstructure:"server"`

	// HTTP API settings
	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"api"`

	// MQTT event publishing
	MQTT struct {
		Enabled           bool   `mapstructure:"enabled"`
		Host              string `mapstructure:"host"`
		Port              int    `mapstructure:"port"`
		Username          string `mapstructure:"username"`
		Password          string `mapstructure:"password"`
		ClientID          string `mapstructure:"client_id"`
		Topic             string `mapstructure:"topic"`
		QoS               byte   `mapstructure:"qos"`
		Retain            bool   `mapstructure:"retain"`
		ConnectionTimeout int    `mapstructure:"connection_timeout"`
	} `mapstructure:"mqtt"`

	// Deferred command execution
	Scheduler struct {
		Enabled       bool          `mapstructure:"enabled"`
		TickInterval  time.Duration `mapstructure:"tick_interval"`
		MaxRetries    int           `mapstructure:"max_retries"`
		RetryDelay    time.Duration `mapstructure:"retry_delay"`
		QueueSize     int           `mapstructure:"queue_size"`
		CommandTTL    time.Duration `mapstructure:"command_ttl"`
		MaxConcurrent int           `mapstructure:"max_concurrent"`
	} `mapstructure:"scheduler"`

	Session struct {
		Timeout         time.Duration `mapstructure:"timeout"`
		CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	} `mapstructure:"session"`

	// Node signing key used for signed commands
	Signing struct {
		KeyID   string `mapstructure:"key_id"`
		SeedHex string `mapstructure:"seed_hex"`
	} `mapstructure:"signing"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
	}

	cfg.Node.ID = "csms-01"
	cfg.Node.DefaultRequestTimeout = 30 * time.Second
	cfg.Node.LockTimeout = 30 * time.Second
	cfg.Node.VetoActiveTransactions = true

	// Default station server settings
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9000
	cfg.Server.Path = "/ocpp"
	cfg.Server.Subprotocols = []string{"ocpp2.0.1", "ocpp2.0.1+crc"}
	cfg.Server.PingInterval = 30 * time.Second
	cfg.Server.PongTimeout = 60 * time.Second
	cfg.Server.MaxMessageSize = 1 << 20
	cfg.Server.HeartbeatEvery = 300

	// Default API settings
	cfg.API.Enabled = true
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080

	// Default MQTT settings
	cfg.MQTT.Enabled = false
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.ClientID = "go-csms"
	cfg.MQTT.Topic = "csms/events"
	cfg.MQTT.QoS = 1
	cfg.MQTT.Retain = false
	cfg.MQTT.ConnectionTimeout = 10

	// Default scheduler settings
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.TickInterval = time.Second
	cfg.Scheduler.MaxRetries = 3
	cfg.Scheduler.RetryDelay = 5 * time.Second
	cfg.Scheduler.QueueSize = 1000
	cfg.Scheduler.CommandTTL = 10 * time.Minute
	cfg.Scheduler.MaxConcurrent = 4

	cfg.Session.Timeout = 10 * time.Minute
	cfg.Session.CleanupInterval = time.Minute

	return cfg
}

// envKeys are the settings that can be overridden with CSMS_ prefixed environment variables.
var envKeys = []string{
	"log_level",
	"stations_file",
	"node.id",
	"node.default_request_timeout",
	"node.lock_timeout",
	"node.veto_active_transactions",
	"server.host",
	"server.port",
	"api.enabled",
	"api.host",
	"api.port",
	"mqtt.enabled",
	"mqtt.host",
	"mqtt.port",
	"mqtt.username",
	"mqtt.password",
	"mqtt.topic",
	"scheduler.enabled",
	"session.timeout",
	"signing.key_id",
	"signing.seed_hex",
}

// Load reads the configuration from a file and environment variables.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Set up Viper
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Override with specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			log.Info().Msg("No configuration file found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvPrefix("CSMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("unable to bind %s: %w", key, err)
		}
	}

	// Unmarshal config
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return errors.New("node.id must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QoS)
	}
	return nil
}

// Print displays the current configuration.
func (c *Config) Print() {
	logger := log.With().Str("component", "config").Logger()
	logger.Info().Msg("go-csms Configuration:")
	logger.Info().Msg("-----------------------------")
	logger.Info().Str("log_level", c.LogLevel).Msg("Log Level")
	logger.Info().Str("stations_file", c.StationsFile).Msg("Station Seed")

	logger.Info().
		Str("id", c.Node.ID).
		Dur("default_request_timeout", c.Node.DefaultRequestTimeout).
		Dur("lock_timeout", c.Node.LockTimeout).
		Bool("veto_active_transactions", c.Node.VetoActiveTransactions).
		Msg("Node")

	logger.Info().
		Str("host", c.Server.Host).
		Int("port", c.Server.Port).
		Str("path", c.Server.Path).
		Strs("subprotocols", c.Server.Subprotocols).
		Msg("Station Server")

	logger.Info().Bool("enabled", c.API.Enabled).Msg("API Enabled")
	if c.API.Enabled {
		logger.Info().
			Str("host", c.API.Host).
			Int("port", c.API.Port).
			Msg("API Server")
	}

	logger.Info().Bool("enabled", c.MQTT.Enabled).Msg("MQTT Enabled")
	if c.MQTT.Enabled {
		logger.Info().
			Str("host", c.MQTT.Host).
			Int("port", c.MQTT.Port).
			Str("topic", c.MQTT.Topic).
			Uint8("qos", c.MQTT.QoS).
			Msg("MQTT Configuration")
	}

	logger.Info().Bool("enabled", c.Scheduler.Enabled).Msg("Scheduler Enabled")
	if c.Scheduler.Enabled {
		logger.Info().
			Dur("tick_interval", c.Scheduler.TickInterval).
			Int("max_retries", c.Scheduler.MaxRetries).
			Dur("retry_delay", c.Scheduler.RetryDelay).
			Msg("Scheduler Configuration")
	}

	logger.Info().Dur("timeout", c.Session.Timeout).Msg("Session")
	logger.Info().Msg("-----------------------------")
}
