package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const weightEpsilon = 1e-9

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TORP_CONFIG is set
//  3. env (prefix TORP_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TORP_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: TORP_ADDR, TORP_SOURCE_TIMEOUT_MS, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("TORP_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "torp_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate fails fast on configuration that would otherwise surface as
// per-request errors.
func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if len(c.Weights) > 0 {
		var sum float64
		for axis, w := range c.Weights {
			if w < 0 {
				return fmt.Errorf("%w: negative weight for axis %q", ErrInvalidConfig, axis)
			}
			sum += w
		}
		if math.Abs(sum-1.0) > weightEpsilon {
			return fmt.Errorf("%w: axis weights sum to %v, want 1.0", ErrInvalidConfig, sum)
		}
	}
	if c.SourceTimeoutMS <= 0 || c.EnrichDeadlineMS <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.ConfidenceBase < 0 || c.ConfidenceBase > 100 {
		return fmt.Errorf("%w: confidence base must be in [0,100]", ErrInvalidConfig)
	}
	return nil
}
