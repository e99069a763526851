package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Backend BackendConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
}

type BackendConfig struct {
	BaseURL string
	Timeout int // seconds
}

func (b BackendConfig) TimeoutDuration() time.Duration {
	if b.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.Timeout) * time.Second
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30,
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "sopdesk-data"
		}
	}
	return filepath.Join(dir, "sopdesk")
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/sopdesk/config.json, then applies SOPDESK_*
// environment variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
