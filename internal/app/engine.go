package service

import (
	"context"
	"fmt"

	"github.com/okian/feedrank/internal/config"
	"github.com/okian/feedrank/internal/domain/encoding"
	"github.com/okian/feedrank/internal/domain/features"
	"github.com/okian/feedrank/internal/domain/ranking"
	"github.com/okian/feedrank/internal/domain/scoring"
	"github.com/okian/feedrank/internal/domain/timematch"
	"github.com/okian/feedrank/pkg/logger"
	"github.com/okian/feedrank/pkg/metrics"
)

// ModelInfo describes the model a service ranks with.
type ModelInfo struct {
	Variant            string
	Threshold          float64
	FallbackMultiplier float64
	DecayMinutes       float64
	FeatureColumns     []string
	scoring.Info
}

func (m ModelInfo) stats() map[string]interface{} {
	return map[string]interface{}{
		"variant":            m.Variant,
		"kind":               string(m.Kind),
		"version":            m.Version,
		"path":               m.Path,
		"threshold":          m.Threshold,
		"fallbackMultiplier": m.FallbackMultiplier,
		"decayMinutes":       m.DecayMinutes,
		"columns":            m.FeatureColumns,
	}
}

// BuildEngine loads the configured model variant and wires the ranking
// engine around it. Every failure here is a startup error.
func BuildEngine(ctx context.Context, cfg *config.Config, log logger.Logger) (*ranking.Engine, ModelInfo, error) {
	spec, err := cfg.Model()
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrBuildEngine, err)
	}

	layout, err := encoding.NewLayout(spec.Columns)
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: variant %s: %w", ErrBuildEngine, spec.Variant, err)
	}

	model, info, err := scoring.Load(ctx, spec.Path, layout.Columns())
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: variant %s: %w", ErrBuildEngine, spec.Variant, err)
	}

	calc := timematch.New(timematch.WithDecayMinutes(cfg.TimeDecayMinutes))
	extractor := features.NewExtractor(features.WithTimeMatch(calc))
	engine, err := ranking.New(model, layout,
		ranking.WithThreshold(spec.Threshold),
		ranking.WithFallbackMultiplier(cfg.FallbackMultiplier),
		ranking.WithExtractor(extractor),
		ranking.WithLogger(log.Named("ranking")),
	)
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrBuildEngine, err)
	}

	metrics.SetModelInfo(spec.Variant, string(info.Kind), info.Version)
	log.Info(ctx, "model loaded",
		logger.String("variant", spec.Variant),
		logger.String("kind", string(info.Kind)),
		logger.String("version", info.Version),
		logger.String("path", spec.Path),
		logger.Float64("threshold", engine.Threshold()),
		logger.Float64("fallback_multiplier", engine.FallbackMultiplier()),
		logger.Float64("decay_minutes", calc.DecayMinutes()),
		logger.Int("columns", layout.Width()),
	)

	return engine, ModelInfo{
		Variant:            spec.Variant,
		Threshold:          engine.Threshold(),
		FallbackMultiplier: engine.FallbackMultiplier(),
		DecayMinutes:       calc.DecayMinutes(),
		FeatureColumns:     layout.Columns(),
		Info:               info,
	}, nil
}
