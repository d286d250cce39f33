package scoring

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// artifact is the on-disk model description. YAML and JSON both parse.
type artifact struct {
	Kind      string             `koanf:"kind"`
	Link      string             `koanf:"link"`
	Version   string             `koanf:"version"`
	Intercept float64            `koanf:"intercept"`
	Weights   map[string]float64 `koanf:"weights"`
	BaseScore float64            `koanf:"base_score"`
	Trees     []TreeSpec         `koanf:"trees"`
}

// Load reads the artifact at path and compiles it against columns, the
// feature order rows will arrive in.
func Load(ctx context.Context, path string, columns []string) (Model, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}
	if path == "" {
		return nil, Info{}, fmt.Errorf("%w: empty path", ErrLoadModel)
	}

	// Column names carry spaces but never '|', so it is a safe key delimiter.
	k := koanf.New("|")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, Info{}, fmt.Errorf("%w: %s: %v", ErrLoadModel, path, err)
	}
	var a artifact
	if err := k.UnmarshalWithConf("", &a, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, Info{}, fmt.Errorf("%w: %s: %v", ErrLoadModel, path, err)
	}

	info := Info{
		Kind:    Kind(a.Kind),
		Version: a.Version,
		Path:    path,
		Columns: len(columns),
	}
	var (
		m   Model
		err error
	)
	switch info.Kind {
	case KindLinear:
		m, err = NewLinear(columns, a.Intercept, a.Weights, Link(a.Link))
	case KindGBDT:
		m, err = NewEnsemble(columns, a.BaseScore, a.Trees, Link(a.Link))
		info.Trees = len(a.Trees)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidModel, a.Kind)
	}
	if err != nil {
		return nil, Info{}, fmt.Errorf("%s: %w", path, err)
	}
	info.Link, _ = parseLink(a.Link)
	return m, info, nil
}
