package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "FEEDRANK_"
	envFileKey = "FEEDRANK_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FEEDRANK_CONFIG is set
//  3. env (prefix FEEDRANK_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FEEDRANK_QUEUE_SIZE -> queue_size. A double underscore descends a level,
	// so FEEDRANK_MODELS__LINEAR__PATH -> models.linear.path.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	fillModelDefaults(&cfg)

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	return &cfg, nil
}

// fillModelDefaults restores path and columns of built-in variants that a
// partial file or env override left blank. Map entries are decoded whole, so
// setting only models.linear.threshold would otherwise drop the path.
func fillModelDefaults(cfg *Config) {
	for name, def := range defaultModels() {
		m, ok := cfg.Models[name]
		if !ok {
			continue
		}
		if m.Path == "" {
			m.Path = def.Path
		}
		if len(m.Columns) == 0 {
			m.Columns = def.Columns
		}
		cfg.Models[name] = m
	}
}
