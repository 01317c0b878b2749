package ml

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cycle-dashboard/internal/features"
)

// PythonOptions configures the scikit-learn worker backend.
type PythonOptions struct {
	Name       string
	PythonPath string
	ScriptPath string
	Timeout    time.Duration
	Metrics    MetricsInterface
}

// PythonClassifier serves a joblib artifact through a long-lived Python
// process that loads the model once and answers newline-delimited JSON.
// Round trips are serialized; a timed-out worker is killed and restarted on
// the next call.
type PythonClassifier struct {
	name       string
	modelPath  string
	pythonPath string
	scriptPath string
	timeout    time.Duration
	metrics    MetricsInterface
	features   []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *tailBuffer
}

type workerRequest struct {
	Op      string      `json:"op"`
	Columns []string    `json:"columns,omitempty"`
	Rows    [][]float64 `json:"rows,omitempty"`
}

type workerResponse struct {
	Features      []string    `json:"features"`
	Classes       []int       `json:"classes"`
	Labels        []int       `json:"labels"`
	Probabilities [][]float64 `json:"probabilities"`
	Error         string      `json:"error,omitempty"`
}

// LoadPython starts the worker and asks it to describe the artifact. The
// describe round trip doubles as the load-time health check.
func LoadPython(ctx context.Context, modelPath string, opts PythonOptions) (*PythonClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model artifact not accessible: %w", err)
	}

	pythonPath := opts.PythonPath
	if pythonPath == "" {
		found, err := findPython()
		if err != nil {
			return nil, err
		}
		pythonPath = found
	}

	scriptPath := opts.ScriptPath
	if scriptPath == "" {
		scriptPath = filepath.Join(os.TempDir(), "cycle-dashboard-sklearn-worker.py")
		if err := createInferenceScript(scriptPath); err != nil {
			return nil, fmt.Errorf("failed to create inference script: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	p := &PythonClassifier{
		name:       opts.Name,
		modelPath:  modelPath,
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		timeout:    timeout,
		metrics:    metrics,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := p.roundTrip(ctx, workerRequest{Op: "describe"})
	if err != nil {
		p.stop()
		return nil, fmt.Errorf("model health check failed: %w", err)
	}
	if len(resp.Classes) > 0 && !binaryClasses(resp.Classes) {
		p.stop()
		return nil, fmt.Errorf("model classes %v are not binary 0/1", resp.Classes)
	}
	p.features = resp.Features

	log.Info().
		Str("model", p.name).
		Str("model_path", modelPath).
		Str("python_path", pythonPath).
		Strs("features", p.features).
		Msg("Python model worker ready")

	return p, nil
}

func (p *PythonClassifier) Predict(ctx context.Context, row features.Row) (Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := p.roundTrip(ctx, workerRequest{
		Op:      "predict",
		Columns: row.Names,
		Rows:    [][]float64{row.Values},
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	if len(resp.Labels) != 1 {
		return Prediction{}, fmt.Errorf("%w: expected 1 label, got %d", ErrInference, len(resp.Labels))
	}
	pred := Prediction{Label: resp.Labels[0], HasLabel: true}

	if len(resp.Probabilities) == 1 {
		probs := resp.Probabilities[0]
		if len(probs) != 2 {
			return Prediction{}, fmt.Errorf("%w: expected 2 probabilities, got %d", ErrInference, len(probs))
		}
		for i, prob := range probs {
			if prob < 0 || prob > 1 || prob != prob {
				return Prediction{}, fmt.Errorf("%w: invalid probability %d: %f", ErrInference, i, prob)
			}
		}
		pred.Probability = probs[1]
		pred.HasProbability = true
	}

	log.Debug().
		Str("model", p.name).
		Floats64("features", row.Values).
		Int("label", pred.Label).
		Float64("probability", pred.Probability).
		Msg("Prediction successful")

	return pred, nil
}

func (p *PythonClassifier) Features() []string { return p.features }

func (p *PythonClassifier) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
	return nil
}

// roundTrip must be called with p.mu held.
func (p *PythonClassifier) roundTrip(ctx context.Context, req workerRequest) (workerResponse, error) {
	if err := p.ensureStarted(); err != nil {
		return workerResponse{}, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return workerResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		line []byte
		err  error
	}
	done := make(chan result, 1)
	stdin, stdout := p.stdin, p.stdout
	go func() {
		if _, err := stdin.Write(append(payload, '\n')); err != nil {
			done <- result{err: fmt.Errorf("failed to write request: %w", err)}
			return
		}
		line, err := stdout.ReadBytes('\n')
		done <- result{line: line, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		stderr := p.stderr.String()
		p.stop()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.metrics.MLTimeoutsInc(p.name)
			log.Error().
				Str("model", p.name).
				Str("model_path", p.modelPath).
				Str("stderr", stderr).
				Dur("timeout", p.timeout).
				Msg("Python inference timed out, worker killed")
			return workerResponse{}, fmt.Errorf("prediction timeout after %v", p.timeout)
		}
		return workerResponse{}, ctx.Err()
	}

	if res.err != nil {
		stderr := p.stderr.String()
		p.stop()
		log.Error().
			Err(res.err).
			Str("model", p.name).
			Str("python_path", p.pythonPath).
			Str("script_path", p.scriptPath).
			Str("model_path", p.modelPath).
			Str("stderr", stderr).
			Msg("Python worker exited")
		return workerResponse{}, fmt.Errorf("python worker failed: %w, stderr: %s", res.err, stderr)
	}

	var resp workerResponse
	if err := json.Unmarshal(res.line, &resp); err != nil {
		return workerResponse{}, fmt.Errorf("failed to parse response: %w, stdout: %s", err, strings.TrimSpace(string(res.line)))
	}
	if resp.Error != "" {
		return workerResponse{}, fmt.Errorf("python inference error: %s", resp.Error)
	}
	return resp, nil
}

func (p *PythonClassifier) ensureStarted() error {
	if p.cmd != nil {
		return nil
	}

	cmd := exec.Command(p.pythonPath, p.scriptPath, p.modelPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start python worker: %w", err)
	}

	if p.stderr != nil {
		p.metrics.MLWorkerRestartsInc(p.name)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.stderr = stderr
	return nil
}

func (p *PythonClassifier) stop() {
	if p.cmd == nil {
		return
	}
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil
}

func binaryClasses(classes []int) bool {
	if len(classes) != 2 {
		return false
	}
	return (classes[0] == 0 && classes[1] == 1) || (classes[0] == 1 && classes[1] == 0)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func findPython() (string, error) {
	check := func(path string) bool {
		cmd := exec.Command(path, "-c", "import sys, joblib, sklearn; print('Python', sys.version)")
		output, err := cmd.Output()
		return err == nil && strings.Contains(string(output), "Python 3")
	}

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates := []string{
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		}
		for _, venvPython := range candidates {
			if _, err := os.Stat(venvPython); err == nil && check(venvPython) {
				log.Info().Str("python_path", venvPython).Msg("Using virtual environment Python")
				return venvPython, nil
			}
		}
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			for _, venv := range []string{"venv", ".venv"} {
				venvPython := filepath.Join(root, venv, "bin", "python3")
				if _, err := os.Stat(venvPython); err == nil && check(venvPython) {
					log.Info().Str("python_path", venvPython).Msg("Using project virtual environment Python")
					return venvPython, nil
				}
			}
		}
	}

	for _, candidate := range []string{"python3", "python", "python3.12", "python3.11", "python3.10"} {
		path, err := exec.LookPath(candidate)
		if err == nil && check(path) {
			log.Info().Str("python_path", path).Msg("Using system Python")
			return path, nil
		}
	}

	return "", fmt.Errorf("no Python 3 executable with joblib and scikit-learn found")
}

func createInferenceScript(scriptPath string) error {
	script := `#!/usr/bin/env python3
"""scikit-learn model worker: one JSON request per line on stdin."""
import json
import sys

try:
    import joblib
except ImportError:
    print(json.dumps({"error": "joblib not installed"}), flush=True)
    sys.exit(1)

try:
    import pandas as pd
except ImportError:
    pd = None


def frame(columns, rows):
    if pd is not None:
        return pd.DataFrame(rows, columns=columns)
    return rows


def handle(model, request):
    op = request.get("op")
    if op == "describe":
        names = getattr(model, "feature_names_in_", None)
        classes = getattr(model, "classes_", None)
        return {
            "features": [str(n) for n in names] if names is not None else None,
            "classes": [int(c) for c in classes] if classes is not None else None,
        }
    if op == "predict":
        x = frame(request["columns"], request["rows"])
        response = {"labels": [int(v) for v in model.predict(x)]}
        if hasattr(model, "predict_proba"):
            classes = [int(c) for c in model.classes_]
            probs = []
            for row in model.predict_proba(x):
                by_class = dict(zip(classes, row))
                probs.append([float(by_class.get(0, 0.0)), float(by_class.get(1, 0.0))])
            response["probabilities"] = probs
        return response
    return {"error": "unknown op %r" % op}


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: worker.py <model_path>"}), flush=True)
        sys.exit(1)
    model = joblib.load(sys.argv[1])
    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            response = handle(model, json.loads(line))
        except Exception as e:
            response = {"error": str(e)}
        print(json.dumps(response), flush=True)


if __name__ == "__main__":
    main()
`

	return os.WriteFile(scriptPath, []byte(script), 0o755)
}
