package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigOption is one default configuration entry; the set in
// GetConfigOptions is the single source of truth for defaults and for the
// generated config file.
type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the default configuration options and their meanings.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "data_dir", Default: defaultDataDir(), Comment: "Directory for local state; the frame log lives here"},
		{Key: "poll_interval", Default: 2 * time.Millisecond, Comment: "Idle wait between ingest sweeps"},

		{Key: "link.mode", Default: "stream", Comment: "Transport: memory | stream | quic | quic-listen"},
		{Key: "link.device", Default: "/dev/ttyUSB0", Comment: "Device or pipe path for the stream link"},
		{Key: "link.addr", Default: "", Comment: "host:port of the peer or bridge for the QUIC links"},
		{Key: "link.insecure", Default: false, Comment: "Skip TLS verification when dialing (closed networks only)"},

		{Key: "tls.cert_file", Default: "", Comment: "PEM certificate for quic-listen and bridge"},
		{Key: "tls.key_file", Default: "", Comment: "PEM key for quic-listen and bridge"},
		{Key: "tls.domain", Default: "", Comment: "Domain for ACME-managed bridge certificates"},
		{Key: "tls.email", Default: "", Comment: "ACME account email"},

		{Key: "record.enabled", Default: false, Comment: "Persist every ingested frame to the frame log"},
		{Key: "record.db", Default: "", Comment: "Frame log path; defaults to data_dir/serialbus.db"},
	}
}

func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence: defaults < file < env.
// The provided Viper instance is mutated in place.
func Load(ctx context.Context, v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "serialbus"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "serialbus"))
		}
		v.AddConfigPath(".")
	}

	applyDefaults(v)

	// Config file is optional; defaults plus env are a complete setup.
	_ = v.ReadInConfig()

	v.SetEnvPrefix("serialbus")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.GetString("data_dir") == "" {
		v.Set("data_dir", defaultDataDir())
	}
	if strings.TrimSpace(v.GetString("record.db")) == "" {
		v.Set("record.db", RecordDBPath(v))
	}
	return nil
}

// RecordDBPath resolves the frame log location from data_dir rules.
func RecordDBPath(v *viper.Viper) string {
	if p := strings.TrimSpace(v.GetString("record.db")); p != "" {
		return p
	}
	dir := v.GetString("data_dir")
	if dir == "" {
		dir = defaultDataDir()
	}
	if strings.HasPrefix(dir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	return filepath.Join(dir, "serialbus.db")
}

// DefaultConfigPath resolves the standard config.toml location.
func DefaultConfigPath() string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, _ := os.UserHomeDir()
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "serialbus", "config.toml")
}

// defaultDataDir resolves $XDG_DATA_HOME/serialbus or ~/.local/share/serialbus.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "serialbus")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "serialbus")
}
