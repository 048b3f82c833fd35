package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.WalletAddress = "0xabc123"
	cfg.Name = "test-node"

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.WalletAddress, loaded.WalletAddress)
	require.Equal(t, cfg.Name, loaded.Name)
	require.Equal(t, cfg.Pricing, loaded.Pricing)
	require.Equal(t, cfg.Limits.MaxConcurrentJobs, loaded.Limits.MaxConcurrentJobs)
	require.ElementsMatch(t, cfg.MCPAdapters, loaded.MCPAdapters)
}

func TestDefaultPricing(t *testing.T) {
	cfg := Default()
	require.Equal(t, uint32(10), cfg.Pricing.MinimumCents)
	require.Equal(t, "USDC", cfg.Currency)
	require.Equal(t, 9876, cfg.Network.APIPort)
}

func TestAuthTokenEncryptedAtRest(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.AuthToken = "secret-token-value"

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret-token-value")
	require.Contains(t, string(raw), "auth_token_encrypted")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "secret-token-value", loaded.AuthToken)
}
