// Package config loads the daemon's flat configuration: a YAML file read
// at startup, with environment variables applied afterward as overrides
// for secrets and per-deployment values that should not live in a
// checked-in file.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
)

// Config holds every setting the ledgerd daemon needs to wire its
// components together.
type Config struct {
	// Storage
	DataDir string `yaml:"data_dir"`

	// Network-facing addresses (no transport is implemented; these are
	// where the HTTP metrics/health surface binds).
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Genesis parameters. Accounts are hex strings and the genesis balance
	// is a base-10 integer string in YAML/env form; ParsedGenesisAccount and friends below give the
	// typed values callers actually want.
	GenesisAccount string `yaml:"genesis_account"`
	GenesisBalance string `yaml:"genesis_balance"`
	EpochSigner    string `yaml:"epoch_signer"`

	// EpochLinks maps an epoch number to the hex-encoded sentinel Link
	// value that marks a state block as upgrading to that epoch.
	EpochLinks map[uint32]string `yaml:"epoch_links"`

	// WorkThresholds maps an epoch number to the minimum work value a block
	// at that epoch must reach; epoch 0 is used for legacy-kind blocks.
	WorkThresholds map[uint32]uint64 `yaml:"work_thresholds"`

	// Bootstrap weights
	BootstrapWeightBlockCount uint64 `yaml:"bootstrap_weight_block_count"`
	BootstrapWeightSeedPath   string `yaml:"bootstrap_weight_seed_path"`

	// Election tuning
	ElectionVoteCooldown time.Duration `yaml:"election_vote_cooldown"`
	ElectionExpiry       time.Duration `yaml:"election_expiry"`

	// Unchecked pool
	UncheckedCapacity int `yaml:"unchecked_capacity"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a Config usable for local development: a single-node
// genesis with no epoch upgrades configured and generous pool capacity.
func Default() *Config {
	return &Config{
		DataDir:                   "./data",
		ListenAddr:                "127.0.0.1:7075",
		MetricsAddr:               "127.0.0.1:9090",
		GenesisBalance:            "0",
		EpochLinks:                map[uint32]string{},
		WorkThresholds:            map[uint32]uint64{0: 0xffffffc000000000},
		BootstrapWeightBlockCount: 0,
		ElectionVoteCooldown:      15 * time.Second,
		ElectionExpiry:            5 * time.Minute,
		UncheckedCapacity:         65536,
		LogLevel:                  "info",
		LogFormat:                 "json",
	}
}

// Load reads path as YAML over Default, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets a deployment override specific fields without
// editing the checked-in YAML file, mirroring the teacher's getEnv-with-
// default pattern but applied as a second pass over an already-parsed
// struct instead of the sole source of values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEDGERD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LEDGERD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LEDGERD_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("LEDGERD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LEDGERD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LEDGERD_BOOTSTRAP_WEIGHT_BLOCK_COUNT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.BootstrapWeightBlockCount = n
		}
	}
	if v := os.Getenv("LEDGERD_BOOTSTRAP_WEIGHT_SEED_PATH"); v != "" {
		cfg.BootstrapWeightSeedPath = v
	}
}

// Validate checks the fields Load cannot safely default.
func (c *Config) Validate() error {
	if c.GenesisAccount == "" {
		return fmt.Errorf("config: genesis_account must be set")
	}
	if _, err := c.ParsedGenesisAccount(); err != nil {
		return fmt.Errorf("config: genesis_account: %w", err)
	}
	if c.EpochSigner != "" {
		if _, err := c.ParsedEpochSigner(); err != nil {
			return fmt.Errorf("config: epoch_signer: %w", err)
		}
	}
	if len(c.WorkThresholds) == 0 {
		return fmt.Errorf("config: work_thresholds must name at least epoch 0")
	}
	if _, ok := c.WorkThresholds[0]; !ok {
		return fmt.Errorf("config: work_thresholds must include epoch 0 for legacy-kind blocks")
	}
	return nil
}

// ParsedGenesisAccount decodes GenesisAccount from hex.
func (c *Config) ParsedGenesisAccount() (blocks.Account, error) {
	h, err := blocks.HashFromHex(c.GenesisAccount)
	return blocks.Account(h), err
}

// ParsedEpochSigner decodes EpochSigner from hex.
func (c *Config) ParsedEpochSigner() (blocks.Account, error) {
	h, err := blocks.HashFromHex(c.EpochSigner)
	return blocks.Account(h), err
}

// ParsedGenesisBalance parses GenesisBalance as a base-10 integer string.
func (c *Config) ParsedGenesisBalance() (blocks.Amount, error) {
	n, ok := new(big.Int).SetString(c.GenesisBalance, 10)
	if !ok {
		return blocks.Amount{}, fmt.Errorf("config: genesis_balance %q is not a base-10 integer", c.GenesisBalance)
	}
	return blocks.NewAmount(n)
}

// ParsedEpochLinks decodes every entry of EpochLinks from hex.
func (c *Config) ParsedEpochLinks() (map[uint32]blocks.Hash32, error) {
	out := make(map[uint32]blocks.Hash32, len(c.EpochLinks))
	for epoch, hexLink := range c.EpochLinks {
		h, err := blocks.HashFromHex(hexLink)
		if err != nil {
			return nil, fmt.Errorf("epoch_links[%d]: %w", epoch, err)
		}
		out[epoch] = h
	}
	return out, nil
}
