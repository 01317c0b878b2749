package ml

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-dashboard/internal/features"
)

const fakeWorker = `while IFS= read -r line; do
  case "$line" in
    *'"op":"describe"'*) printf '%s\n' '{"features":["Ovulation Day"],"classes":[0,1]}' ;;
    *'"rows":[[99]]'*) sleep 3 ;;
    *'"rows":[[-1]]'*) printf '%s\n' '{"error":"boom"}' ;;
    *'"rows":[[0]]'*) printf '%s\n' '{"labels":[0]}' ;;
    *'"op":"predict"'*) printf '%s\n' '{"labels":[1],"probabilities":[[0.2,0.8]]}' ;;
  esac
done
`

func startFakeWorker(t *testing.T, timeout time.Duration, metrics MetricsInterface) *PythonClassifier {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	script := writeFile(t, dir, "worker.sh", fakeWorker)
	model := writeFile(t, dir, "model.joblib", "artifact")

	p, err := LoadPython(context.Background(), model, PythonOptions{
		Name:       "fertility",
		PythonPath: sh,
		ScriptPath: script,
		Timeout:    timeout,
		Metrics:    metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestLoadPython_MissingArtifact(t *testing.T) {
	_, err := LoadPython(context.Background(), "nonexistent_model.joblib", PythonOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accessible")
}

func TestPythonClassifier_DescribeAndPredict(t *testing.T) {
	p := startFakeWorker(t, 2*time.Second, &MockMetrics{})
	assert.Equal(t, []string{features.OvulationDay}, p.Features())

	row := features.Row{Names: []string{features.OvulationDay}, Values: []float64{14}}
	pred, err := p.Predict(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, 1, pred.Label)
	assert.True(t, pred.HasProbability)
	assert.InDelta(t, 0.8, pred.Probability, 1e-9)

	// Worker stays up between calls.
	again, err := p.Predict(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, pred, again)
}

func TestPythonClassifier_LabelOnly(t *testing.T) {
	p := startFakeWorker(t, 2*time.Second, nil)

	pred, err := p.Predict(context.Background(), features.Row{Names: []string{features.OvulationDay}, Values: []float64{0}})
	require.NoError(t, err)
	assert.Equal(t, 0, pred.Label)
	assert.False(t, pred.HasProbability)
}

func TestPythonClassifier_WorkerError(t *testing.T) {
	p := startFakeWorker(t, 2*time.Second, nil)

	_, err := p.Predict(context.Background(), features.Row{Names: []string{features.OvulationDay}, Values: []float64{-1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInference))
	assert.Contains(t, err.Error(), "boom")
}

func TestPythonClassifier_TimeoutRestartsWorker(t *testing.T) {
	metrics := &MockMetrics{}
	p := startFakeWorker(t, 200*time.Millisecond, metrics)

	_, err := p.Predict(context.Background(), features.Row{Names: []string{features.OvulationDay}, Values: []float64{99}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInference))
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, 1, metrics.Timeouts())

	pred, err := p.Predict(context.Background(), features.Row{Names: []string{features.OvulationDay}, Values: []float64{14}})
	require.NoError(t, err)
	assert.Equal(t, 1, pred.Label)
}

func TestBinaryClasses(t *testing.T) {
	assert.True(t, binaryClasses([]int{0, 1}))
	assert.True(t, binaryClasses([]int{1, 0}))
	assert.False(t, binaryClasses([]int{0, 1, 2}))
	assert.False(t, binaryClasses([]int{1, 2}))
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 4}
	_, _ = b.Write([]byte("abcdef"))
	assert.Equal(t, "cdef", b.String())

	var nilBuf *tailBuffer
	assert.Equal(t, "", nilBuf.String())
}
