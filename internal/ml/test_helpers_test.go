package ml

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu       sync.Mutex
	modelAge map[string]float64
	timeouts int
	restarts int
}

func (m *MockMetrics) MLModelAgeSet(model string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modelAge == nil {
		m.modelAge = make(map[string]float64)
	}
	m.modelAge[model] = v
}

func (m *MockMetrics) MLTimeoutsInc(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func (m *MockMetrics) MLWorkerRestartsInc(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
}

func (m *MockMetrics) Timeouts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeouts
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
