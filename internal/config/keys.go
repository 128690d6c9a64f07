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
	kBool
	kFloat
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
		key: "server.port", typ: kInt, env: "EVERD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "EVERD_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "storage.data_dir", typ: kString, env: "EVERD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "EVERD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "neynar.api_key", typ: kString, env: "EVERD_NEYNAR_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Neynar.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Neynar.APIKey },
	},
	{
		key: "neynar.signer_uuid", typ: kString, env: "EVERD_NEYNAR_SIGNER_UUID",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Neynar.SignerUUID = v.(string) },
		extract: func(cfg Config) any { return cfg.Neynar.SignerUUID },
	},
	{
		key: "neynar.webhook_secret", typ: kString, env: "EVERD_NEYNAR_WEBHOOK_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Neynar.WebhookSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Neynar.WebhookSecret },
	},
	{
		key: "pinata.jwt", typ: kString, env: "EVERD_PINATA_JWT",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Pinata.JWT = v.(string) },
		extract: func(cfg Config) any { return cfg.Pinata.JWT },
	},
	{
		key: "bot.username", typ: kString, env: "EVERD_BOT_USERNAME",
		apply:   func(cfg *Config, v any) { cfg.Bot.Username = v.(string) },
		extract: func(cfg Config) any { return cfg.Bot.Username },
	},
	{
		key: "bot.fid", typ: kInt, env: "EVERD_BOT_FID",
		apply:   func(cfg *Config, v any) { cfg.Bot.FID = int64(v.(int)) },
		extract: func(cfg Config) any { return cfg.Bot.FID },
	},
	{
		key: "mint.enabled", typ: kBool, env: "EVERD_MINT_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Mint.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Mint.Enabled },
	},
	{
		key: "mint.relay_url", typ: kString, env: "EVERD_MINT_RELAY_URL",
		apply:   func(cfg *Config, v any) { cfg.Mint.RelayURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Mint.RelayURL },
	},
	{
		key: "api.token", typ: kString, env: "EVERD_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
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
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
