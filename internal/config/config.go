package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log    LoggingConfig `yaml:"log"`
	Engine EngineConfig  `yaml:"engine"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// EngineConfig carries the protocol-wide constants. Big USD values are
// decimal strings at the 1e30 scale so they survive YAML intact.
type EngineConfig struct {
	BasisPointsDivisor   int64  `yaml:"basis_points_divisor"`
	MaxLeverageBps       int64  `yaml:"max_leverage_bps"`
	MinCollateralUsd     string `yaml:"min_collateral_usd"`
	MaxSwapImpactBps     int64  `yaml:"max_swap_impact_bps"`
	MaxPositionImpactBps int64  `yaml:"max_position_impact_bps"`
}

// EngineParams is the parsed form handed to every engine entry point.
type EngineParams struct {
	BasisPointsDivisor   *big.Int
	MaxLeverageBps       *big.Int
	MinCollateralUsd     *big.Int
	MaxSwapImpactBps     *big.Int
	MaxPositionImpactBps *big.Int
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// Default returns a config with every default applied, for hosts that
// supply no file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = "json"
	}
	if cfg.Engine.BasisPointsDivisor == 0 {
		cfg.Engine.BasisPointsDivisor = 10000
	}
	if cfg.Engine.MaxLeverageBps == 0 {
		cfg.Engine.MaxLeverageBps = 100 * cfg.Engine.BasisPointsDivisor
	}
	if cfg.Engine.MinCollateralUsd == "" {
		// $1 at the 1e30 scale.
		cfg.Engine.MinCollateralUsd = "1000000000000000000000000000000"
	}
	if cfg.Engine.MaxSwapImpactBps == 0 {
		cfg.Engine.MaxSwapImpactBps = 5000
	}
	if cfg.Engine.MaxPositionImpactBps == 0 {
		cfg.Engine.MaxPositionImpactBps = 5000
	}
}

func validate(cfg *Config) error {
	if cfg.Engine.BasisPointsDivisor <= 0 {
		return errors.New("engine.basis_points_divisor must be > 0")
	}
	if cfg.Engine.MaxLeverageBps <= cfg.Engine.BasisPointsDivisor {
		return errors.New("engine.max_leverage_bps must exceed one unit of leverage")
	}
	if _, err := parseUsd(cfg.Engine.MinCollateralUsd); err != nil {
		return fmt.Errorf("engine.min_collateral_usd: %w", err)
	}
	if cfg.Engine.MaxSwapImpactBps < 0 || cfg.Engine.MaxPositionImpactBps < 0 {
		return errors.New("engine impact caps must be >= 0")
	}
	return nil
}

// Params parses the engine section into big-int form.
func (c EngineConfig) Params() (EngineParams, error) {
	minCollateral, err := parseUsd(c.MinCollateralUsd)
	if err != nil {
		return EngineParams{}, fmt.Errorf("engine.min_collateral_usd: %w", err)
	}
	return EngineParams{
		BasisPointsDivisor:   big.NewInt(c.BasisPointsDivisor),
		MaxLeverageBps:       big.NewInt(c.MaxLeverageBps),
		MinCollateralUsd:     minCollateral,
		MaxSwapImpactBps:     big.NewInt(c.MaxSwapImpactBps),
		MaxPositionImpactBps: big.NewInt(c.MaxPositionImpactBps),
	}, nil
}

func parseUsd(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal integer %q", s)
	}
	if v.Sign() < 0 {
		return nil, errors.New("must be >= 0")
	}
	return v, nil
}
