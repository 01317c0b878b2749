// Package gateway owns the loaded classifiers, keyed by prediction purpose,
// and runs the assemble, classify and present pipeline for one request.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"cycle-dashboard/internal/features"
	"cycle-dashboard/internal/ml"
	"cycle-dashboard/internal/present"
)

// ErrModelUnavailable is matched by every ModelUnavailableError.
var ErrModelUnavailable = errors.New("model unavailable")

// ModelUnavailableError reports a purpose whose classifier failed to load or
// was never configured.
type ModelUnavailableError struct {
	Purpose present.Purpose
	Cause   error
}

func (e *ModelUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s model unavailable: %v", e.Purpose, e.Cause)
	}
	return fmt.Sprintf("%s model unavailable", e.Purpose)
}

func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

func (e *ModelUnavailableError) Unwrap() error { return e.Cause }

// MetricsInterface defines metrics methods needed by the registry
type MetricsInterface interface {
	PredictionsInc(purpose, category string)
	SchemaErrorsInc(purpose string)
	InferenceFailuresInc(purpose string)
	ModelUnavailableInc(purpose string)
	PredictionLatencyObserve(purpose string, seconds float64)
	CacheHitsInc(purpose string)
	ModelLoadedSet(purpose string, loaded bool)
}

type nopMetrics struct{}

func (nopMetrics) PredictionsInc(string, string)            {}
func (nopMetrics) SchemaErrorsInc(string)                   {}
func (nopMetrics) InferenceFailuresInc(string)              {}
func (nopMetrics) ModelUnavailableInc(string)               {}
func (nopMetrics) PredictionLatencyObserve(string, float64) {}
func (nopMetrics) CacheHitsInc(string)                      {}
func (nopMetrics) ModelLoadedSet(string, bool)              {}

// Options configures a Registry.
type Options struct {
	// CacheSize bounds the prediction cache; zero disables it.
	CacheSize int
	CacheTTL  time.Duration
	// Timeout bounds one Classify call; zero leaves the caller's deadline.
	Timeout time.Duration
	Metrics MetricsInterface
}

type entry struct {
	schema features.Schema
	model  *ml.Loaded
	err    error
}

// Registry maps each purpose to its own schema and classifier. Entries are
// written during startup and only read afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[present.Purpose]*entry
	cache   *expirable.LRU[string, present.Result]
	timeout time.Duration
	metrics MetricsInterface
}

// NewRegistry creates an empty registry
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		entries: make(map[present.Purpose]*entry),
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
	if r.metrics == nil {
		r.metrics = nopMetrics{}
	}
	if opts.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, present.Result](opts.CacheSize, nil, opts.CacheTTL)
	}
	return r
}

// Load opens the artifact for purpose and registers it. A failure is logged
// once and leaves the purpose unavailable; the error is also returned.
func (r *Registry) Load(ctx context.Context, purpose present.Purpose, schema features.Schema, spec ml.ModelSpec, opts ml.LoadOptions) error {
	spec.Name = string(purpose)
	loaded, err := ml.Load(ctx, spec, opts)
	if err != nil {
		r.MarkUnavailable(purpose, schema, err)
		return err
	}
	return r.Register(purpose, schema, loaded)
}

// Register installs a loaded classifier after checking the schema against
// the columns the artifact declares.
func (r *Registry) Register(purpose present.Purpose, schema features.Schema, loaded *ml.Loaded) error {
	if _, err := present.ParsePurpose(string(purpose)); err != nil {
		return err
	}
	if err := schema.Validate(); err != nil {
		_ = loaded.Classifier.Close()
		r.MarkUnavailable(purpose, schema, err)
		return err
	}
	if err := schema.CheckAgainst(loaded.DeclaredFeatures()); err != nil {
		_ = loaded.Classifier.Close()
		r.MarkUnavailable(purpose, schema, err)
		return err
	}

	r.mu.Lock()
	if old, ok := r.entries[purpose]; ok && old.model != nil {
		_ = old.model.Classifier.Close()
	}
	r.entries[purpose] = &entry{schema: schema, model: loaded}
	r.mu.Unlock()

	r.metrics.ModelLoadedSet(string(purpose), true)
	log.Info().
		Str("purpose", string(purpose)).
		Str("backend", loaded.Backend).
		Str("path", loaded.Path).
		Strs("features", schema.Names()).
		Msg("Model registered")
	return nil
}

// MarkUnavailable records a load failure for purpose.
func (r *Registry) MarkUnavailable(purpose present.Purpose, schema features.Schema, cause error) {
	r.mu.Lock()
	r.entries[purpose] = &entry{schema: schema, err: cause}
	r.mu.Unlock()

	r.metrics.ModelLoadedSet(string(purpose), false)
	log.Error().Err(cause).Str("purpose", string(purpose)).Msg("Model failed to load, predictions disabled for this purpose")
}

// Classify assembles obs against purpose's schema, runs its classifier and
// presents the label. Schema errors are returned before any inference.
func (r *Registry) Classify(ctx context.Context, purpose present.Purpose, obs features.Observation) (present.Result, error) {
	start := time.Now()
	name := string(purpose)

	r.mu.RLock()
	e, ok := r.entries[purpose]
	r.mu.RUnlock()
	if !ok || e.model == nil {
		r.metrics.ModelUnavailableInc(name)
		var cause error
		if ok {
			cause = e.err
		}
		return present.Result{}, &ModelUnavailableError{Purpose: purpose, Cause: cause}
	}

	row, err := e.schema.Assemble(obs)
	if err != nil {
		r.metrics.SchemaErrorsInc(name)
		return present.Result{}, err
	}

	key := name + ":" + row.Key()
	if r.cache != nil {
		if res, hit := r.cache.Get(key); hit {
			r.metrics.CacheHitsInc(name)
			r.metrics.PredictionsInc(name, res.Category)
			return res, nil
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	pred, err := e.model.Classifier.Predict(ctx, row)
	if err != nil {
		r.metrics.InferenceFailuresInc(name)
		if !errors.Is(err, ml.ErrInference) {
			err = fmt.Errorf("%w: %v", ml.ErrInference, err)
		}
		log.Error().Err(err).Str("purpose", name).Floats64("row", row.Values).Msg("Classification failed")
		return present.Result{}, err
	}

	res, err := present.Present(purpose, pred)
	if err != nil {
		r.metrics.InferenceFailuresInc(name)
		return present.Result{}, fmt.Errorf("%w: %v", ml.ErrInference, err)
	}

	if r.cache != nil {
		r.cache.Add(key, res)
	}
	r.metrics.PredictionsInc(name, res.Category)
	r.metrics.PredictionLatencyObserve(name, time.Since(start).Seconds())
	return res, nil
}

// ModelStatus describes one purpose for the dashboard and /api/v1/models.
type ModelStatus struct {
	Purpose   present.Purpose `json:"purpose"`
	Available bool            `json:"available"`
	Backend   string          `json:"backend,omitempty"`
	Path      string          `json:"path,omitempty"`
	Version   string          `json:"version,omitempty"`
	Features  []string        `json:"features,omitempty"`
	Error     string          `json:"error,omitempty"`
	LoadedAt  *time.Time      `json:"loaded_at,omitempty"`
}

// Status lists every known purpose, including ones never configured.
func (r *Registry) Status() []ModelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[present.Purpose]bool)
	var out []ModelStatus
	add := func(p present.Purpose) {
		if seen[p] {
			return
		}
		seen[p] = true
		st := ModelStatus{Purpose: p}
		e, ok := r.entries[p]
		switch {
		case !ok:
			st.Error = "not configured"
		case e.model == nil:
			st.Features = e.schema.Names()
			if e.err != nil {
				st.Error = e.err.Error()
			}
		default:
			st.Available = true
			st.Backend = e.model.Backend
			st.Path = e.model.Path
			st.Features = e.schema.Names()
			loadedAt := e.model.LoadedAt
			st.LoadedAt = &loadedAt
			if e.model.Metadata != nil {
				st.Version = e.model.Metadata.Version
			}
		}
		out = append(out, st)
	}

	for _, p := range present.Purposes {
		add(p)
	}
	var extra []present.Purpose
	for p := range r.entries {
		if !seen[p] {
			extra = append(extra, p)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, p := range extra {
		add(p)
	}
	return out
}

// Available reports whether purpose can be classified.
func (r *Registry) Available(purpose present.Purpose) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[purpose]
	return ok && e.model != nil
}

// AllUnavailable reports that no purpose has a usable classifier.
func (r *Registry) AllUnavailable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.model != nil {
			return false
		}
	}
	return true
}

// Close releases every classifier.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for p, e := range r.entries {
		if e.model == nil {
			continue
		}
		if err := e.model.Classifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
