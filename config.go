package rotor

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

const (
	DefThreshold   = 4
	MinThreshold   = 2
	DefPollSeconds = 2
)

// StoreConfig locates the shared coordination store. Every node process
// opens the same database file, so the address and paths must match across
// the fleet.
type StoreConfig struct {
	Address   string `toml:"address"`
	Port      string `toml:"port"`
	Name      string `toml:"name"`
	DataPath  string `toml:"data_path"`
	ModelPath string `toml:"model_path"`
}

// NodeConfig drives a single unified node process.
type NodeConfig struct {
	Name                 string  `toml:"name"`
	IP                   string  `toml:"ip"`
	Port                 string  `toml:"port"`
	StoreAddress         string  `toml:"store_address"`
	Threshold            int     `toml:"registration_threshold"`
	AggregationThreshold float64 `toml:"aggregation_threshold"`
	SemiDecentralized    bool    `toml:"semi_decentralized"`
	EnableRotation       bool    `toml:"enable_rotation"`
}

// WindowConfig drives the single-process registration-window server.
type WindowConfig struct {
	IP               string            `toml:"ip"`
	Port             string            `toml:"port"`
	WindowSeconds    int               `toml:"registration_window"`
	StatePath        string            `toml:"state_path"`
	DatabaseFeatures map[string]string `toml:"database_features"`
}

// Config is the combined on-disk layout: one file may carry all three
// sections, or each section may live in its own file.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Node   NodeConfig   `toml:"node"`
	Window WindowConfig `toml:"window"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func (c StoreConfig) Validate() error {
	if c.Address == "" {
		return errors.New("store address is required")
	}
	if c.Name == "" {
		return errors.New("store name is required")
	}
	if c.DataPath == "" {
		return errors.New("store data_path is required")
	}

	return nil
}

// Path is the location of the backing database file.
func (c StoreConfig) Path() string {
	return c.DataPath + "/" + c.Name + ".db"
}

func (c NodeConfig) Validate() error {
	if c.Name == "" {
		return errors.New("node name is required")
	}
	if c.Port == "" {
		return errors.New("node port is required")
	}
	if c.Threshold < MinThreshold {
		return fmt.Errorf("registration_threshold must be at least %d, got %d", MinThreshold, c.Threshold)
	}
	if c.AggregationThreshold <= 0 || c.AggregationThreshold > 1 {
		return fmt.Errorf("aggregation_threshold must be in (0, 1], got %v", c.AggregationThreshold)
	}

	return nil
}

func (c WindowConfig) Validate() error {
	if c.Port == "" {
		return errors.New("window port is required")
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("registration_window must be positive, got %d", c.WindowSeconds)
	}
	if c.StatePath == "" {
		return errors.New("window state_path is required")
	}

	return nil
}
