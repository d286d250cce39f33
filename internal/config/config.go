// Package config defines service configuration and the model-variant lookup.
//
// Conventions:
//   - New returns a Config populated with defaults; Load layers file and env on top.
//   - Model variant problems are reported by (*Config).Model so the process can
//     refuse to start before serving anything.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/okian/feedrank/internal/domain/encoding"
)

const (
	DefaultModelType          = "lightgbm"
	DefaultModelThreshold     = 0.5
	DefaultFallbackMultiplier = 0.8
	DefaultTimeDecayMinutes   = 600
)

// ModelConfig describes one loadable model variant.
type ModelConfig struct {
	// Path points at the model artifact (YAML or JSON).
	Path string `koanf:"path"`

	// Columns is the exact feature order the artifact was trained on.
	Columns []string `koanf:"feature_columns"`

	// Threshold overrides the global model_threshold when set.
	Threshold *float64 `koanf:"threshold"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory ranking job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ranking workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxPosts caps the number of candidate posts per request.
	MaxPosts int `koanf:"max_posts"`

	// RequestTimeoutMS bounds how long a request waits for its ranking job.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// ModelType names the active entry in Models.
	ModelType string `koanf:"model_type"`

	// ModelThreshold is the keep threshold unless the variant overrides it.
	ModelThreshold float64 `koanf:"model_threshold"`

	// FallbackMultiplier scales every score when nothing clears the threshold.
	FallbackMultiplier float64 `koanf:"fallback_multiplier"`

	// TimeDecayMinutes is the ring distance at which time_match_score hits zero.
	TimeDecayMinutes float64 `koanf:"time_decay_minutes"`

	// Models maps variant names to their artifacts.
	Models map[string]ModelConfig `koanf:"models"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          1024,
		WorkerCount:        runtime.NumCPU() * 2,
		MaxPosts:           500,
		RequestTimeoutMS:   2000,
		ModelType:          DefaultModelType,
		ModelThreshold:     DefaultModelThreshold,
		FallbackMultiplier: DefaultFallbackMultiplier,
		TimeDecayMinutes:   DefaultTimeDecayMinutes,
		Models:             defaultModels(),
	}
}

func defaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"lightgbm": {Path: "models/lightgbm.yaml", Columns: slices.Clone(encoding.DefaultColumns)},
		"linear":   {Path: "models/linear.yaml", Columns: slices.Clone(encoding.DefaultColumns)},
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// ModelSpec is the resolved configuration of the active variant.
type ModelSpec struct {
	Variant   string
	Path      string
	Columns   []string
	Threshold float64
}

// Model resolves the active variant. A missing variant, artifact path or
// column list is an ErrInvalidConfig.
func (c *Config) Model() (ModelSpec, error) {
	name := strings.TrimSpace(c.ModelType)
	if name == "" {
		return ModelSpec{}, fmt.Errorf("%w: model_type must not be empty", ErrInvalidConfig)
	}
	m, ok := c.Models[name]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: unknown model_type %q (configured: %s)",
			ErrInvalidConfig, name, strings.Join(c.variants(), ", "))
	}
	if strings.TrimSpace(m.Path) == "" {
		return ModelSpec{}, fmt.Errorf("%w: models.%s.path must not be empty", ErrInvalidConfig, name)
	}
	if len(m.Columns) == 0 {
		return ModelSpec{}, fmt.Errorf("%w: models.%s.feature_columns must not be empty", ErrInvalidConfig, name)
	}
	threshold := c.ModelThreshold
	if m.Threshold != nil {
		threshold = *m.Threshold
	}
	return ModelSpec{
		Variant:   name,
		Path:      m.Path,
		Columns:   slices.Clone(m.Columns),
		Threshold: threshold,
	}, nil
}

func (c *Config) variants() []string {
	names := make([]string, 0, len(c.Models))
	for n := range c.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
