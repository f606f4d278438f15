// Package config loads the broker's TOML configuration file and overlays
// it with RATELMQ__-prefixed environment variables, matching the
// section-qualified, double-underscore-separated scheme the reference
// settings module implements with the Rust `config` crate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// MQTT holds the `[mqtt]` section.
type MQTT struct {
	ListenersTCP        []string `toml:"listeners_tcp"`
	ReadBufferBytes     int      `toml:"read_buffer_bytes"`
	EgressCapacity      int      `toml:"egress_capacity"`
	EgressSendTimeoutMs int      `toml:"egress_send_timeout_ms"`
}

// EgressSendTimeout is the §4.3 per-send back-pressure timeout as a
// time.Duration.
func (m MQTT) EgressSendTimeout() time.Duration {
	return time.Duration(m.EgressSendTimeoutMs) * time.Millisecond
}

// Authentication holds the `[authentication]` section.
type Authentication struct {
	PasswordFile string `toml:"password_file"`
}

// Log holds the `[log]` section.
type Log struct {
	Level string `toml:"level"`
}

// Config is the broker's full configuration.
type Config struct {
	MQTT           MQTT           `toml:"mqtt"`
	Authentication Authentication `toml:"authentication"`
	Log            Log            `toml:"log"`
}

func defaults() Config {
	return Config{
		MQTT: MQTT{
			ListenersTCP:        []string{"0.0.0.0:1883"},
			ReadBufferBytes:     4096,
			EgressCapacity:      32,
			EgressSendTimeoutMs: 5000,
		},
		Authentication: Authentication{
			PasswordFile: "/etc/ratelmq/passwords",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path, applies defaults for anything it
// doesn't set, then overlays RATELMQ__-prefixed environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if err := applyEnvironmentOverlay(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

const envPrefix = "RATELMQ__"

// applyEnvironmentOverlay scans the process environment for
// RATELMQ__SECTION__KEY variables and overrides the matching config field.
// List-valued fields are split on commas.
func applyEnvironmentOverlay(cfg *Config) error {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
		section, field, ok := strings.Cut(key, "__")
		if !ok {
			continue
		}

		if err := setField(cfg, section, field, value); err != nil {
			return fmt.Errorf("config: environment override %s: %w", name, err)
		}
	}
	return nil
}

func setField(cfg *Config, section, field, value string) error {
	switch section {
	case "mqtt":
		switch field {
		case "listeners_tcp":
			cfg.MQTT.ListenersTCP = strings.Split(value, ",")
		case "read_buffer_bytes":
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			cfg.MQTT.ReadBufferBytes = n
		case "egress_capacity":
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			cfg.MQTT.EgressCapacity = n
		case "egress_send_timeout_ms":
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			cfg.MQTT.EgressSendTimeoutMs = n
		}
	case "authentication":
		switch field {
		case "password_file":
			cfg.Authentication.PasswordFile = value
		}
	case "log":
		switch field {
		case "level":
			cfg.Log.Level = value
		}
	}
	return nil
}
