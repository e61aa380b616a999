// Package config loads the basket daemon configuration from TOML.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	ServiceEnv    string `toml:"ServiceEnv"`

	Basket   BasketConfig   `toml:"basket"`
	Registry RegistryConfig `toml:"registry"`
}

type BasketConfig struct {
	Address    string            `toml:"Address"`
	Name       string            `toml:"Name"`
	Symbol     string            `toml:"Symbol"`
	Manager    string            `toml:"Manager"`
	Components []ComponentConfig `toml:"components"`
}

type ComponentConfig struct {
	Address string `toml:"Address"`
	// Unit is the component's real unit per share as a decimal string in
	// 18-decimal fixed point.
	Unit string `toml:"Unit"`
}

type RegistryConfig struct {
	FeeRecipient string          `toml:"FeeRecipient"`
	Modules      []string        `toml:"Modules"`
	Baskets      []string        `toml:"Baskets"`
	Adapters     []AdapterConfig `toml:"adapters"`
	Fees         []FeeConfig     `toml:"fees"`
}

type AdapterConfig struct {
	Module  string `toml:"Module"`
	Name    string `toml:"Name"`
	Address string `toml:"Address"`
}

type FeeConfig struct {
	Module string `toml:"Module"`
	Index  uint8  `toml:"Index"`
	// Fee is the precise-unit fee percentage as a decimal string.
	Fee string `toml:"Fee"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(string(raw))
}

// Parse decodes and validates a TOML document.
func Parse(doc string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(doc, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8480"
	}
	if strings.TrimSpace(cfg.ServiceEnv) == "" {
		cfg.ServiceEnv = "dev"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses parse and quantities are well formed.
func (c *Config) Validate() error {
	if err := requireAddress("basket.Address", c.Basket.Address); err != nil {
		return err
	}
	if err := requireAddress("basket.Manager", c.Basket.Manager); err != nil {
		return err
	}
	if strings.TrimSpace(c.Basket.Name) == "" {
		return fmt.Errorf("config: basket.Name is empty")
	}
	if strings.TrimSpace(c.Basket.Symbol) == "" {
		return fmt.Errorf("config: basket.Symbol is empty")
	}
	for i, component := range c.Basket.Components {
		if err := requireAddress(fmt.Sprintf("basket.components[%d].Address", i), component.Address); err != nil {
			return err
		}
		unit, ok := parseAmount(component.Unit)
		if !ok || unit.Sign() <= 0 {
			return fmt.Errorf("config: basket.components[%d].Unit %q is not a positive integer", i, component.Unit)
		}
	}
	if c.Registry.FeeRecipient != "" {
		if err := requireAddress("registry.FeeRecipient", c.Registry.FeeRecipient); err != nil {
			return err
		}
	}
	for i, module := range c.Registry.Modules {
		if err := requireAddress(fmt.Sprintf("registry.Modules[%d]", i), module); err != nil {
			return err
		}
	}
	for i, basketAddr := range c.Registry.Baskets {
		if err := requireAddress(fmt.Sprintf("registry.Baskets[%d]", i), basketAddr); err != nil {
			return err
		}
	}
	for i, adapter := range c.Registry.Adapters {
		if err := requireAddress(fmt.Sprintf("registry.adapters[%d].Module", i), adapter.Module); err != nil {
			return err
		}
		if err := requireAddress(fmt.Sprintf("registry.adapters[%d].Address", i), adapter.Address); err != nil {
			return err
		}
		if strings.TrimSpace(adapter.Name) == "" {
			return fmt.Errorf("config: registry.adapters[%d].Name is empty", i)
		}
	}
	for i, fee := range c.Registry.Fees {
		if err := requireAddress(fmt.Sprintf("registry.fees[%d].Module", i), fee.Module); err != nil {
			return err
		}
		amount, ok := parseAmount(fee.Fee)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("config: registry.fees[%d].Fee %q is not a non-negative integer", i, fee.Fee)
		}
	}
	return nil
}

// BasketAddress returns the parsed basket address.
func (c *Config) BasketAddress() ethcommon.Address {
	return ethcommon.HexToAddress(c.Basket.Address)
}

// ManagerAddress returns the parsed manager address.
func (c *Config) ManagerAddress() ethcommon.Address {
	return ethcommon.HexToAddress(c.Basket.Manager)
}

// ParsedUnit returns the component unit as a big integer. Validate must
// have succeeded first.
func (c *ComponentConfig) ParsedUnit() *big.Int {
	unit, _ := parseAmount(c.Unit)
	return unit
}

func requireAddress(field, value string) error {
	if !ethcommon.IsHexAddress(strings.TrimSpace(value)) {
		return fmt.Errorf("config: %s %q is not a hex address", field, value)
	}
	return nil
}

func parseAmount(value string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, false
	}
	return amount, true
}
