// Package config loads the gateway settings from the environment with an
// optional YAML overlay file.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atmx/lending-gateway/internal/aave"
	"github.com/atmx/lending-gateway/internal/validate"
)

const (
	DefaultPort           = "5044"
	DefaultRPCURL         = "https://sepolia.base.org"
	DefaultConfirmTimeout = 90 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultCacheTTL       = 30 * time.Second
)

var privateKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Config captures the runtime settings of the gateway.
type Config struct {
	Port                string        `yaml:"port"`
	PrivateKey          string        `yaml:"private_key"`
	RPCURL              string        `yaml:"rpc_url"`
	ConfirmTimeout      time.Duration `yaml:"confirm_timeout"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval"`
	DatabaseURL         string        `yaml:"database_url"`
	RedisURL            string        `yaml:"redis_url"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	LogLevel            string        `yaml:"log_level"`
	Network             NetworkConfig `yaml:"network"`
}

// NetworkConfig overrides entries of the Base Sepolia address book.
type NetworkConfig struct {
	Pool   string        `yaml:"pool"`
	Oracle string        `yaml:"oracle"`
	Assets []AssetConfig `yaml:"assets"`
}

// AssetConfig lists one borrowable asset.
type AssetConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. The result is
// validated.
func Load() (Config, error) {
	return load(os.Getenv, os.Getenv("CONFIG_FILE"))
}

func load(getenv func(string) string, path string) (Config, error) {
	cfg := Config{
		Port:                DefaultPort,
		RPCURL:              DefaultRPCURL,
		ConfirmTimeout:      DefaultConfirmTimeout,
		ReceiptPollInterval: DefaultPollInterval,
		CacheTTL:            DefaultCacheTTL,
		LogLevel:            "info",
	}

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&cfg.Port, "PORT")
	setString(&cfg.PrivateKey, "PRIVATE_KEY")
	setString(&cfg.RPCURL, "BASE_SEPOLIA_RPC_URL", "RPC_URL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	for key, dst := range map[string]*time.Duration{
		"CONFIRM_TIMEOUT":       &cfg.ConfirmTimeout,
		"RECEIPT_POLL_INTERVAL": &cfg.ReceiptPollInterval,
		"CACHE_TTL":             &cfg.CacheTTL,
	} {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.PrivateKey = strings.TrimSpace(cfg.PrivateKey)
	if cfg.PrivateKey != "" && !strings.HasPrefix(cfg.PrivateKey, "0x") {
		cfg.PrivateKey = "0x" + cfg.PrivateKey
	}
	cfg.RPCURL = strings.TrimSpace(cfg.RPCURL)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Network.Pool = strings.TrimSpace(cfg.Network.Pool)
	cfg.Network.Oracle = strings.TrimSpace(cfg.Network.Oracle)
	for i := range cfg.Network.Assets {
		cfg.Network.Assets[i].Symbol = strings.ToUpper(strings.TrimSpace(cfg.Network.Assets[i].Symbol))
		cfg.Network.Assets[i].Address = strings.TrimSpace(cfg.Network.Assets[i].Address)
	}
}

// Validate checks every setting once at startup. The private key is never
// included in error messages.
func (cfg Config) Validate() error {
	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required")
	}
	if !privateKeyPattern.MatchString(cfg.PrivateKey) {
		return fmt.Errorf("PRIVATE_KEY must be 32 bytes of hex")
	}
	u, err := url.Parse(cfg.RPCURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("RPC URL %q is not an absolute URL", cfg.RPCURL)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("RPC URL scheme must be http(s) or ws(s), got %q", u.Scheme)
	}
	if cfg.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	if cfg.ReceiptPollInterval <= 0 {
		return fmt.Errorf("RECEIPT_POLL_INTERVAL must be positive")
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return err
	}
	if _, err := cfg.BaseSepolia(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (cfg Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return 0, err
		}
		return level, nil
	case "":
		return slog.LevelInfo, nil
	}
	return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", cfg.LogLevel)
}

// BaseSepolia returns the Base Sepolia address book with any configured
// overrides applied.
func (cfg Config) BaseSepolia() (aave.Network, error) {
	n := aave.BaseSepolia()
	if cfg.Network.Pool != "" {
		addr, err := validate.Address("network.pool", cfg.Network.Pool)
		if err != nil {
			return aave.Network{}, err
		}
		n.Pool = addr
	}
	if cfg.Network.Oracle != "" {
		addr, err := validate.Address("network.oracle", cfg.Network.Oracle)
		if err != nil {
			return aave.Network{}, err
		}
		n.Oracle = addr
	}
	if len(cfg.Network.Assets) > 0 {
		assets := make([]aave.Asset, 0, len(cfg.Network.Assets))
		seen := make(map[string]bool)
		for i, a := range cfg.Network.Assets {
			if a.Symbol == "" {
				return aave.Network{}, fmt.Errorf("assets[%d]: symbol is required", i)
			}
			if seen[a.Symbol] {
				return aave.Network{}, fmt.Errorf("assets[%d]: duplicate symbol %s", i, a.Symbol)
			}
			seen[a.Symbol] = true
			addr, err := validate.Address(fmt.Sprintf("assets[%d].address", i), a.Address)
			if err != nil {
				return aave.Network{}, err
			}
			if a.Decimals < 0 || a.Decimals > 36 {
				return aave.Network{}, fmt.Errorf("assets[%d]: decimals out of range", i)
			}
			assets = append(assets, aave.Asset{Symbol: a.Symbol, Underlying: addr, Decimals: a.Decimals})
		}
		n.Assets = assets
	}
	return n, nil
}
