package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultTendermintPort      = 26657
	DefaultDiscoveryTimeout    = 3000
	DefaultReconnectDelay      = 1000
	DefaultSubscribeRetryDelay = 500
	DefaultNodeHaltedTimeout   = 120_000
	DefaultPollInterval        = 3000
	DefaultGas                 = "200000"
	DefaultServerPort          = 7070
	DefaultAddressBookPath     = "addressbook.json"
)

type Wallet struct {
	AddressBookPath string   `toml:"addressbook_path"`
	Seeds           []string `toml:"seeds"`
	// Stargate is a fixed node address. When set, peer discovery is skipped entirely.
	Stargate    string `toml:"stargate"`
	DefaultPort int    `toml:"default_port"`
	LcdUrl      string `toml:"lcd_url"`
	SignerUrl   string `toml:"signer_url"`
	ChainId     string `toml:"chain_id"`
	Gas         string `toml:"gas"`

	// All timeouts are in milliseconds.
	DiscoveryTimeout    int `toml:"discovery_timeout"`
	ReconnectDelay      int `toml:"reconnect_delay"`
	SubscribeRetryDelay int `toml:"subscribe_retry_delay"`
	NodeHaltedTimeout   int `toml:"node_halted_timeout"`
	PollInterval        int `toml:"poll_interval"`

	ServerPort int `toml:"server_port"`
}

// Load reads the toml file at path, fills in defaults and applies environment overrides. An
// empty path only uses defaults and the environment.
func Load(path string) (*Wallet, error) {
	cfg := &Wallet{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("cannot decode config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	return cfg, nil
}

func (c *Wallet) SetDefaults() {
	if c.AddressBookPath == "" {
		c.AddressBookPath = DefaultAddressBookPath
	}
	if c.DefaultPort == 0 {
		c.DefaultPort = DefaultTendermintPort
	}
	if c.Gas == "" {
		c.Gas = DefaultGas
	}
	if c.DiscoveryTimeout == 0 {
		c.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.SubscribeRetryDelay == 0 {
		c.SubscribeRetryDelay = DefaultSubscribeRetryDelay
	}
	if c.NodeHaltedTimeout == 0 {
		c.NodeHaltedTimeout = DefaultNodeHaltedTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ServerPort == 0 {
		c.ServerPort = DefaultServerPort
	}
}

func (c *Wallet) applyEnv() error {
	if v := os.Getenv("STARGATE"); v != "" {
		c.Stargate = v
	}

	if v := os.Getenv("NODE_HALTED_TIMEOUT"); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NODE_HALTED_TIMEOUT %q: %w", v, err)
		}
		c.NodeHaltedTimeout = timeout
	}

	if v := os.Getenv("DWALLET_LCD_URL"); v != "" {
		c.LcdUrl = v
	}

	if v := os.Getenv("DWALLET_SIGNER_URL"); v != "" {
		c.SignerUrl = v
	}

	if v := os.Getenv("DWALLET_SEEDS"); v != "" {
		seeds := make([]string, 0)
		for _, seed := range strings.Split(v, ",") {
			seed = strings.TrimSpace(seed)
			if seed != "" {
				seeds = append(seeds, seed)
			}
		}
		c.Seeds = seeds
	}

	return nil
}

func (c *Wallet) DiscoveryTimeoutDuration() time.Duration {
	return time.Duration(c.DiscoveryTimeout) * time.Millisecond
}

func (c *Wallet) ReconnectDelayDuration() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Millisecond
}

func (c *Wallet) SubscribeRetryDelayDuration() time.Duration {
	return time.Duration(c.SubscribeRetryDelay) * time.Millisecond
}

func (c *Wallet) NodeHaltedTimeoutDuration() time.Duration {
	return time.Duration(c.NodeHaltedTimeout) * time.Millisecond
}

func (c *Wallet) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}
