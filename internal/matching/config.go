package matching

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights are raw additive points per criterion. They need not sum to 100.
type Weights struct {
	Keyword float64 `yaml:"keyword" json:"keyword" mapstructure:"keyword"`
	Stage   float64 `yaml:"stage" json:"stage" mapstructure:"stage"`
	Region  float64 `yaml:"region" json:"region" mapstructure:"region"`
	Budget  float64 `yaml:"budget" json:"budget" mapstructure:"budget"`
	Use     float64 `yaml:"use" json:"use" mapstructure:"use"`
}

// DefaultWeights is the advisory practice baseline.
func DefaultWeights() Weights {
	return Weights{
		Keyword: 40,
		Stage:   15,
		Region:  10,
		Budget:  15,
		Use:     20,
	}
}

func (w Weights) Validate() error {
	fields := map[string]float64{
		"keyword": w.Keyword,
		"stage":   w.Stage,
		"region":  w.Region,
		"budget":  w.Budget,
		"use":     w.Use,
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
		}
	}
	return nil
}

// Thresholds map a non-hard-failed score to a label.
type Thresholds struct {
	Feasible int `yaml:"feasible" json:"feasible" mapstructure:"feasible"`
	Caution  int `yaml:"caution" json:"caution" mapstructure:"caution"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Feasible: 70, Caution: 50}
}

func (t Thresholds) Validate() error {
	if t.Caution > t.Feasible {
		return errors.New("caution threshold must not exceed feasible threshold")
	}
	return nil
}

type Config struct {
	Weights    Weights    `yaml:"weights" json:"weights" mapstructure:"weights"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds" mapstructure:"thresholds"`
}

func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), Thresholds: DefaultThresholds()}
}

func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	return c.Thresholds.Validate()
}

// LoadConfigFromFile reads a YAML tuning file. Keys missing from the file keep
// their defaults; on any error the defaults are returned with the error.
func LoadConfigFromFile(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read matching config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("unmarshal matching config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid matching config: %w", err)
	}
	return cfg, nil
}
