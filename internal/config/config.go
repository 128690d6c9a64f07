package config

import (
	"strings"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Neynar  NeynarConfig
	Pinata  PinataConfig
	Bot     BotConfig
	Mint    MintConfig
	API     APIConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type NeynarConfig struct {
	APIKey        string
	SignerUUID    string
	WebhookSecret string
}

type PinataConfig struct {
	JWT string
}

type BotConfig struct {
	Username string
	FID      int64
}

type MintConfig struct {
	Enabled  bool
	RelayURL string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Bot: BotConfig{
			Username: "evermarkbot",
		},
		Mint: MintConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.everd.app) and secrets
// fall back to macOS Keychain. On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/everd/config.json with secrets in a sibling file.
//
// Environment variables (EVERD_*) override backend values on all platforms.
// Missing credentials do not fail the load; the affected integrations
// degrade instead.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts platform secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for credentials still empty.
	if cfg.Neynar.APIKey == "" {
		if key, err := kc.Get("everd", "neynar_api_key"); err == nil && key != "" {
			cfg.Neynar.APIKey = key
		}
	}
	if cfg.Pinata.JWT == "" {
		if key, err := kc.Get("everd", "pinata_jwt"); err == nil && key != "" {
			cfg.Pinata.JWT = key
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
