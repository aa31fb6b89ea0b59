// Package conf loads application configuration from YAML files, environment
// variables, and defaults, for both the server and the collector binaries.
package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerSettings configures the API server process.
type ServerSettings struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Debug        bool   `mapstructure:"debug"`
	LogLevel     string `mapstructure:"log_level"`
	DatabasePath string `mapstructure:"database_path"`

	Alerts AlertSettings `mapstructure:"alerts"`
}

// AlertSettings configures the SMS notifier. An empty ServiceURL disables the
// transport; alerts are then recorded with the "logged" status.
type AlertSettings struct {
	// ServiceURL is a shoutrrr service URL with a {phone} placeholder for
	// the resolved destination, e.g. "generic://sms-gateway.example/send?to={phone}".
	ServiceURL         string   `mapstructure:"service_url"`
	DefaultPhoneNumber string   `mapstructure:"default_phone_number"`
	SendTimeout        Duration `mapstructure:"send_timeout"`

	// HistoryRetentionDays bounds the alert history table; older records
	// are purged hourly. Zero disables the purge.
	HistoryRetentionDays int `mapstructure:"history_retention_days"`
}

// CollectorSettings configures the collector agent process.
type CollectorSettings struct {
	ServerURL         string   `mapstructure:"server_url"`
	WatchPaths        []string `mapstructure:"watch_paths"`
	BatchSize         int      `mapstructure:"batch_size"`
	RetryInterval     Duration `mapstructure:"retry_interval"`
	MaxRetries        int      `mapstructure:"max_retries"`
	HeartbeatInterval Duration `mapstructure:"heartbeat_interval"`
	ConnectTimeout    Duration `mapstructure:"connect_timeout"`
	HTTPTimeout       Duration `mapstructure:"http_timeout"`
	LogLevel          string   `mapstructure:"log_level"`
}

const envPrefix = "LOADS"

// LoadServer reads server settings from the given config file (optional) with
// environment overrides (LOADS_*) and defaults applied.
func LoadServer(path string) (*ServerSettings, error) {
	v := newViper(path)

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3001)
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("database_path", "data/loads.db")
	v.SetDefault("alerts.service_url", "")
	v.SetDefault("alerts.default_phone_number", "")
	v.SetDefault("alerts.send_timeout", "10s")
	v.SetDefault("alerts.history_retention_days", 90)

	if err := readConfig(v, path); err != nil {
		return nil, err
	}

	var settings ServerSettings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode server settings: %w", err)
	}
	return &settings, nil
}

// LoadCollector reads collector settings from the given config file (optional)
// with environment overrides (LOADS_*) and defaults applied.
func LoadCollector(path string) (*CollectorSettings, error) {
	v := newViper(path)

	v.SetDefault("server_url", "http://localhost:3001")
	v.SetDefault("watch_paths", []string{"loads.json", "tsLoads.json", "data/loads.json", "data/tsLoads.json"})
	v.SetDefault("batch_size", 100)
	v.SetDefault("retry_interval", "5s")
	v.SetDefault("max_retries", 5)
	v.SetDefault("heartbeat_interval", "30s")
	v.SetDefault("connect_timeout", "15s")
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("log_level", "info")

	if err := readConfig(v, path); err != nil {
		return nil, err
	}

	var settings CollectorSettings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode collector settings: %w", err)
	}
	if settings.BatchSize < 1 {
		settings.BatchSize = 100
	}
	if settings.MaxRetries < 1 {
		settings.MaxRetries = 5
	}
	return &settings, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

func readConfig(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}
