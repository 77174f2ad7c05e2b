// Package config loads per-chain endpoint and quorum configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// PolicyConfig selects and parameterizes a consistency policy. Exactly one
// of Count or M applies, distinguished by Kind.
type PolicyConfig struct {
	Kind  string `json:"kind"` // "count" or "average"
	Count int    `json:"count,omitempty"`
	M     int    `json:"m,omitempty"`
}

// ChainConfig holds configuration for one blockchain network: the pool of
// RPC endpoints to cross-check, and the quorum settings to cross-check them
// under.
type ChainConfig struct {
	ChainID                 int64        `json:"chainId"`
	Name                    string       `json:"name"`
	RPCUrls                 []string     `json:"rpcUrls"`
	MaxParallel             uint16       `json:"maxParallel"`
	Policy                  PolicyConfig `json:"policy"`
	Retries                 uint16       `json:"retries"`
	RetriesForInconsistency uint16       `json:"retriesForInconsistency"`
}

// Config holds all chain configurations, keyed by chain name.
type Config struct {
	Chains map[string]*ChainConfig `json:"chains"`
}

// LoadConfig loads chain configuration from a JSON file.
func LoadConfig(filepath string) (*Config, error) {
	file, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// GetChain returns configuration for a specific chain.
func (c *Config) GetChain(name string) (*ChainConfig, error) {
	chain, ok := c.Chains[name]
	if !ok {
		return nil, fmt.Errorf("chain %s not found in config", name)
	}
	return chain, nil
}
