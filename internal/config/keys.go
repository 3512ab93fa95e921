package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SHUTTLE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "inbox.container_dir", typ: kString, env: "SHUTTLE_INBOX_CONTAINER_DIR",
		apply:   func(cfg *Config, v any) { cfg.Inbox.ContainerDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Inbox.ContainerDir },
	},
	{
		key: "inbox.poll_interval", typ: kString, env: "SHUTTLE_INBOX_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Inbox.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Inbox.PollInterval },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SHUTTLE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "share.activation_url", typ: kString, env: "SHUTTLE_SHARE_ACTIVATION_URL",
		apply:   func(cfg *Config, v any) { cfg.Share.ActivationURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Share.ActivationURL },
	},
	{
		key: "share.wake_endpoint", typ: kString, env: "SHUTTLE_SHARE_WAKE_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Share.WakeEndpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Share.WakeEndpoint },
	},
	{
		key: "share.session_timeout", typ: kString, env: "SHUTTLE_SHARE_SESSION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Share.SessionTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Share.SessionTimeout },
	},
	{
		key: "api.token", typ: kString, env: "SHUTTLE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "log.level", typ: kString, env: "SHUTTLE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
