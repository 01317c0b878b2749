package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_PredictionCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionsInc("fertility", "High Fertility")
	wrapper.PredictionsInc("fertility", "High Fertility")
	wrapper.PredictionsInc("regularity", "Regular Cycle")

	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("fertility", "High Fertility")); v != 2 {
		t.Errorf("Expected 2 high fertility predictions, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("regularity", "Regular Cycle")); v != 1 {
		t.Errorf("Expected 1 regular prediction, got %f", v)
	}

	wrapper.SchemaErrorsInc("fertility")
	wrapper.InferenceFailuresInc("regularity")
	wrapper.ModelUnavailableInc("fertility")
	wrapper.CacheHitsInc("regularity")

	if v := testutil.ToFloat64(metrics.SchemaErrors.WithLabelValues("fertility")); v != 1 {
		t.Errorf("Expected 1 schema error, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.InferenceFailures.WithLabelValues("regularity")); v != 1 {
		t.Errorf("Expected 1 inference failure, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ModelUnavailable.WithLabelValues("fertility")); v != 1 {
		t.Errorf("Expected 1 unavailable hit, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("regularity")); v != 1 {
		t.Errorf("Expected 1 cache hit, got %f", v)
	}
}

func TestMetricsWrapper_ModelGauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.ModelLoadedSet("fertility", true)
	wrapper.ModelLoadedSet("regularity", false)
	wrapper.MLModelAgeSet("fertility", 3600)

	if v := testutil.ToFloat64(metrics.ModelLoaded.WithLabelValues("fertility")); v != 1 {
		t.Errorf("Expected fertility loaded gauge 1, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ModelLoaded.WithLabelValues("regularity")); v != 0 {
		t.Errorf("Expected regularity loaded gauge 0, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ModelAge.WithLabelValues("fertility")); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	wrapper.MLTimeoutsInc("fertility")
	wrapper.MLWorkerRestartsInc("fertility")
	if v := testutil.ToFloat64(metrics.MLTimeouts.WithLabelValues("fertility")); v != 1 {
		t.Errorf("Expected 1 timeout, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.WorkerRestarts.WithLabelValues("fertility")); v != 1 {
		t.Errorf("Expected 1 restart, got %f", v)
	}
}

func TestMetricsWrapper_AdvisoryAndHTTP(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.AdvisoryRequestsInc("ok")
	wrapper.AdvisoryRequestsInc("error")
	wrapper.AdvisoryRequestsInc("error")
	wrapper.AdvisoryLatencyObserve(0.4)
	wrapper.HTTPRequestsInc("classify", 422)

	if v := testutil.ToFloat64(metrics.AdvisoryRequests.WithLabelValues("error")); v != 2 {
		t.Errorf("Expected 2 advisory errors, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("classify", "422")); v != 1 {
		t.Errorf("Expected 1 classify 422, got %f", v)
	}
	if c := testutil.CollectAndCount(metrics.AdvisoryLatency); c != 1 {
		t.Errorf("Expected advisory latency histogram to be collected once, got %d", c)
	}
}

func TestMetricsWrapper_LatencyHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionLatencyObserve("fertility", 0.002)
	wrapper.PredictionLatencyObserve("regularity", 0.003)

	if c := testutil.CollectAndCount(metrics.PredictionLatency); c != 2 {
		t.Errorf("Expected 2 latency series, got %d", c)
	}
}

func TestNewWithRegistry_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	NewWrapper(metrics).AdvisoryRequestsInc("ok")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "advisory_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("advisory_requests_total not registered")
	}
}
