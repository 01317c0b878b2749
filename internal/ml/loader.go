package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Backend names accepted by Load.
const (
	BackendTree   = "tree"
	BackendONNX   = "onnx"
	BackendPython = "python"
	BackendRule   = "rule"
)

// ModelSpec selects and locates one artifact.
type ModelSpec struct {
	Name    string
	Backend string
	Path    string
}

// LoadOptions carries runtime settings shared by every backend.
type LoadOptions struct {
	PythonPath string
	ScriptPath string
	ORTLibrary string
	Timeout    time.Duration
	Metrics    MetricsInterface
}

// Loaded is a classifier together with whatever metadata accompanied it.
type Loaded struct {
	Classifier Classifier
	Metadata   *ModelMetadata
	Backend    string
	Path       string
	LoadedAt   time.Time
}

// Load opens the artifact named by spec with the matching backend.
func Load(ctx context.Context, spec ModelSpec, opts LoadOptions) (*Loaded, error) {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	var md *ModelMetadata
	if spec.Backend != BackendRule {
		if found, err := loadModelMetadata(spec.Path); err == nil {
			md = found
		} else {
			log.Debug().Err(err).Str("model", spec.Name).Msg("No model metadata found")
		}
	}

	var (
		c   Classifier
		err error
	)
	switch spec.Backend {
	case BackendRule:
		c = NewRuleClassifier()
	case BackendTree:
		c, err = LoadTree(spec.Path)
	case BackendONNX:
		c, err = LoadONNX(spec.Path, opts.ORTLibrary, md)
	case BackendPython:
		c, err = LoadPython(ctx, spec.Path, PythonOptions{
			Name:       spec.Name,
			PythonPath: opts.PythonPath,
			ScriptPath: opts.ScriptPath,
			Timeout:    opts.Timeout,
			Metrics:    metrics,
		})
	default:
		return nil, fmt.Errorf("unsupported model backend %q", spec.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s model %s: %w", spec.Backend, spec.Path, err)
	}

	if spec.Backend != BackendRule {
		if age, ok := modelAge(spec.Path, md); ok {
			metrics.MLModelAgeSet(spec.Name, age.Seconds())
		}
	}

	return &Loaded{
		Classifier: c,
		Metadata:   md,
		Backend:    spec.Backend,
		Path:       spec.Path,
		LoadedAt:   time.Now(),
	}, nil
}

// DeclaredFeatures prefers the columns the artifact reports and falls back
// to its metadata.
func (l *Loaded) DeclaredFeatures() []string {
	if f := l.Classifier.Features(); len(f) > 0 {
		return f
	}
	if l.Metadata != nil {
		return l.Metadata.Features
	}
	return nil
}
