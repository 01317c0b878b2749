package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces declared by the
// gateway, ml, advisory and dashboard packages.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(purpose, category string) {
	w.m.Predictions.WithLabelValues(purpose, category).Inc()
}

func (w *MetricsWrapper) SchemaErrorsInc(purpose string) {
	w.m.SchemaErrors.WithLabelValues(purpose).Inc()
}

func (w *MetricsWrapper) InferenceFailuresInc(purpose string) {
	w.m.InferenceFailures.WithLabelValues(purpose).Inc()
}

func (w *MetricsWrapper) ModelUnavailableInc(purpose string) {
	w.m.ModelUnavailable.WithLabelValues(purpose).Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(purpose string, seconds float64) {
	w.m.PredictionLatency.WithLabelValues(purpose).Observe(seconds)
}

func (w *MetricsWrapper) CacheHitsInc(purpose string) {
	w.m.CacheHits.WithLabelValues(purpose).Inc()
}

func (w *MetricsWrapper) ModelLoadedSet(purpose string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	w.m.ModelLoaded.WithLabelValues(purpose).Set(v)
}

func (w *MetricsWrapper) MLModelAgeSet(model string, seconds float64) {
	w.m.ModelAge.WithLabelValues(model).Set(seconds)
}

func (w *MetricsWrapper) MLTimeoutsInc(model string) {
	w.m.MLTimeouts.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) MLWorkerRestartsInc(model string) {
	w.m.WorkerRestarts.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) AdvisoryRequestsInc(outcome string) {
	w.m.AdvisoryRequests.WithLabelValues(outcome).Inc()
}

func (w *MetricsWrapper) AdvisoryLatencyObserve(seconds float64) {
	w.m.AdvisoryLatency.Observe(seconds)
}

func (w *MetricsWrapper) HTTPRequestsInc(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
