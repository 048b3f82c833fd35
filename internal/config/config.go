// Package config loads and persists the node's NodeConfig, an immutable
// (once loaded) TOML document describing pricing, resource limits, network
// binding, and registration state.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// NodeConfig is the in-memory configuration schema, per §3.2. It holds
// auth_token in plaintext; the file on disk uses onDiskConfig instead.
type NodeConfig struct {
	Name          string   `toml:"name,omitempty"`
	WalletAddress string   `toml:"wallet_address,omitempty"`
	Currency      string   `toml:"currency"`
	Pricing       Pricing  `toml:"pricing"`
	Limits        Limits   `toml:"limits"`
	Network       Network  `toml:"network"`
	MCPAdapters   []string `toml:"mcp_adapters"`
	AuthToken     string   `toml:"auth_token,omitempty"`
	NodeID        string   `toml:"node_id,omitempty"`
}

// Pricing is expressed in integer cents; no floating-point money anywhere
// in the config or the cost pipeline that consumes it.
type Pricing struct {
	GPUHourCents       uint32 `toml:"gpu_hour_cents"`
	CPUCoreHourCents   uint32 `toml:"cpu_core_hour_cents"`
	MemoryGBHourCents  uint32 `toml:"memory_gb_hour_cents"`
	StorageGBHourCents uint32 `toml:"storage_gb_hour_cents"`
	MinimumCents       uint32 `toml:"minimum_cents"`
}

type Limits struct {
	MaxConcurrentJobs int      `toml:"max_concurrent_jobs"`
	MaxMemoryMB       *uint64  `toml:"max_memory_mb,omitempty"`
	GPUIndices        []uint32 `toml:"gpu_indices,omitempty"`
	CPUCores          *uint32  `toml:"cpu_cores,omitempty"`
	StorageQuotaGB    uint64   `toml:"storage_quota_gb"`
}

type Network struct {
	APIPort              int      `toml:"api_port"`
	PublicAPI            bool     `toml:"public_api"`
	AllowedOrchestrators []string `toml:"allowed_orchestrators"`
}

// Default returns the baseline NodeConfig a fresh `init` writes out, the
// way the teacher's config.go expresses defaults as ready-to-use values
// rather than requiring every field to be set explicitly.
func Default() NodeConfig {
	return NodeConfig{
		Currency: "USDC",
		Pricing: Pricing{
			GPUHourCents:       50,
			CPUCoreHourCents:   5,
			MemoryGBHourCents:  1,
			StorageGBHourCents: 1,
			MinimumCents:       10,
		},
		Limits: Limits{
			MaxConcurrentJobs: 4,
			StorageQuotaGB:    100,
		},
		Network: Network{
			APIPort:   9876,
			PublicAPI: false,
		},
		MCPAdapters: []string{"docker", "llm-inference"},
	}
}

// onDiskConfig mirrors NodeConfig for serialization, except auth_token is
// stored encrypted-at-rest (see secret.go) under a distinct field name so
// the TOML file never holds the plaintext token, the way the teacher's
// secrets package never writes plaintext secrets to disk either.
type onDiskConfig struct {
	Name               string   `toml:"name,omitempty"`
	WalletAddress      string   `toml:"wallet_address,omitempty"`
	Currency           string   `toml:"currency"`
	Pricing            Pricing  `toml:"pricing"`
	Limits             Limits   `toml:"limits"`
	Network            Network  `toml:"network"`
	MCPAdapters        []string `toml:"mcp_adapters"`
	AuthTokenEncrypted string   `toml:"auth_token_encrypted,omitempty"`
	NodeID             string   `toml:"node_id,omitempty"`
}

// Load reads a NodeConfig from a TOML file at path.
func Load(path string) (NodeConfig, error) {
	var disk onDiskConfig
	if _, err := toml.DecodeFile(path, &disk); err != nil {
		return NodeConfig{}, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return NodeConfig{
		Name:          disk.Name,
		WalletAddress: disk.WalletAddress,
		Currency:      disk.Currency,
		Pricing:       disk.Pricing,
		Limits:        disk.Limits,
		Network:       disk.Network,
		MCPAdapters:   disk.MCPAdapters,
		AuthToken:     decryptAuthToken(disk.AuthTokenEncrypted),
		NodeID:        disk.NodeID,
	}, nil
}

// Save writes cfg to path as TOML, creating or truncating the file.
func Save(cfg NodeConfig, path string) error {
	encrypted, err := encryptAuthToken(cfg.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt auth_token: %w", err)
	}

	disk := onDiskConfig{
		Name:               cfg.Name,
		WalletAddress:      cfg.WalletAddress,
		Currency:           cfg.Currency,
		Pricing:            cfg.Pricing,
		Limits:             cfg.Limits,
		Network:            cfg.Network,
		MCPAdapters:        cfg.MCPAdapters,
		AuthTokenEncrypted: encrypted,
		NodeID:             cfg.NodeID,
	}

	f, err := os.Create(path) // #nosec G304 -- path is operator-supplied CLI input
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# RhizOS Node Configuration"); err != nil {
		return err
	}

	enc := toml.NewEncoder(f)
	if err := enc.Encode(disk); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
