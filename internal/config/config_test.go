package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/lending-gateway/internal/aave"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(env(map[string]string{"PRIVATE_KEY": testKey}), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, DefaultConfirmTimeout, cfg.ConfirmTimeout)
	assert.Equal(t, DefaultPollInterval, cfg.ReceiptPollInterval)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Empty(t, cfg.DatabaseURL)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"PRIVATE_KEY":           strings.TrimPrefix(testKey, "0x"),
		"PORT":                  "8080",
		"RPC_URL":               "https://fallback.example",
		"BASE_SEPOLIA_RPC_URL":  "wss://base.example/ws",
		"CONFIRM_TIMEOUT":       "2m",
		"RECEIPT_POLL_INTERVAL": "500ms",
		"LOG_LEVEL":             "DEBUG",
	}), "")
	require.NoError(t, err)

	assert.Equal(t, testKey, cfg.PrivateKey)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "wss://base.example/ws", cfg.RPCURL)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ReceiptPollInterval)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing key":   {},
		"short key":     {"PRIVATE_KEY": "0x1234"},
		"bad port":      {"PRIVATE_KEY": testKey, "PORT": "http"},
		"relative rpc":  {"PRIVATE_KEY": testKey, "RPC_URL": "sepolia.base.org"},
		"ftp rpc":       {"PRIVATE_KEY": testKey, "RPC_URL": "ftp://sepolia.base.org"},
		"bad duration":  {"PRIVATE_KEY": testKey, "CONFIRM_TIMEOUT": "soon"},
		"zero timeout":  {"PRIVATE_KEY": testKey, "CONFIRM_TIMEOUT": "0s"},
		"unknown level": {"PRIVATE_KEY": testKey, "LOG_LEVEL": "loud"},
		"negative poll": {"PRIVATE_KEY": testKey, "RECEIPT_POLL_INTERVAL": "-1s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(env(kv), "")
			require.Error(t, err)
			assert.NotContains(t, err.Error(), testKey[2:])
		})
	}
}

func TestLoad_YAMLOverlayThenEnv(t *testing.T) {
	path := writeFile(t, `
port: "6000"
confirm_timeout: 45s
log_level: warn
network:
  pool: "0x8bab6d1b75f19e9ed9fce8b9bd338844ff79ae27"
  assets:
    - symbol: usdc
      address: "0xba50Cd2A20f6DA35D788639E581bca8d0B5d4D5f"
      decimals: 6
`)
	cfg, err := load(env(map[string]string{"PRIVATE_KEY": testKey, "PORT": "7000"}), path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.ConfirmTimeout)

	n, err := cfg.BaseSepolia()
	require.NoError(t, err)
	assert.Equal(t, aave.BaseSepolia().Pool, n.Pool)
	assert.Equal(t, aave.BaseSepolia().Oracle, n.Oracle)
	require.Len(t, n.Assets, 1)
	assert.Equal(t, "USDC", n.Assets[0].Symbol)
	assert.Equal(t, aave.BaseSepoliaChainID, n.ChainID)
}

func TestLoad_YAMLBadAddress(t *testing.T) {
	path := writeFile(t, `
network:
  oracle: "0x943B0dE18d4abf4eF02A85912F8fc07684C141dF"
`)
	_, err := load(env(map[string]string{"PRIVATE_KEY": testKey}), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network.oracle")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(env(map[string]string{"PRIVATE_KEY": testKey}), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
