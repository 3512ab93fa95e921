package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server  ServerConfig
	Inbox   InboxConfig
	Storage StorageConfig
	Share   ShareConfig
	API     APIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type InboxConfig struct {
	// ContainerDir is the shared directory both the producer and the
	// consumer can reach. Both processes must agree on it.
	ContainerDir string
	PollInterval string
}

type StorageConfig struct {
	DataDir string
}

type ShareConfig struct {
	// ActivationURL is the custom-scheme address used to wake the
	// consumer after a record lands in the inbox.
	ActivationURL string
	// WakeEndpoint, when set, replaces the scheme opener with an HTTP
	// ping to a locally running consumer (e.g. http://127.0.0.1:4600/wake).
	WakeEndpoint   string
	SessionTimeout string
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

// PollDuration parses the inbox poll interval, falling back to 30s.
func (c InboxConfig) PollDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Timeout parses the session timeout, falling back to 10s. Zero ("0s")
// disables the deadline.
func (c ShareConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.SessionTimeout)
	if err != nil || d < 0 {
		return 10 * time.Second
	}
	return d
}

// PayloadDir is where the consumer keeps payload files after import.
func (c StorageConfig) PayloadDir() string {
	return filepath.Join(c.DataDir, "payloads")
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Inbox: InboxConfig{
			ContainerDir: filepath.Join(dataDir, "inbox"),
			PollInterval: "30s",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Share: ShareConfig{
			ActivationURL:  "shuttle://import",
			SessionTimeout: "10s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/shuttle/config.json, then applies SHUTTLE_*
// environment variable overrides. Secrets (the API token) are read
// from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "shuttle-data"
		}
	}
	return filepath.Join(dir, "shuttle")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "shuttle", "config.json")
}
