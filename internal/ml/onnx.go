package ml

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"cycle-dashboard/internal/features"
)

// Tensor names written by skl2onnx for a binary classifier exported with
// zipmap disabled.
const (
	DefaultONNXInput       = "float_input"
	DefaultONNXLabelOutput = "label"
	DefaultONNXProbOutput  = "probabilities"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// initONNXRuntime loads the shared library once per process.
func initONNXRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNXClassifier wraps an ONNX Runtime session for a binary classifier with
// a label output and a [1,2] probability output.
type ONNXClassifier struct {
	session  *ort.DynamicAdvancedSession
	features []string
	nInputs  int
}

// LoadONNX opens an ONNX artifact. The metadata supplies tensor names and the
// declared training columns.
func LoadONNX(path, libraryPath string, md *ModelMetadata) (*ONNXClassifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("onnx artifact not accessible: %w", err)
	}
	if md == nil || len(md.Features) == 0 {
		return nil, fmt.Errorf("onnx artifact %s needs metadata declaring its features", path)
	}
	if err := initONNXRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	input := orDefault(md.InputName, DefaultONNXInput)
	outputs := []string{
		orDefault(md.LabelOutput, DefaultONNXLabelOutput),
		orDefault(md.ProbOutput, DefaultONNXProbOutput),
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{input}, outputs, options)
	if err != nil {
		return nil, fmt.Errorf("failed to load ONNX model: %w", err)
	}

	return &ONNXClassifier{
		session:  session,
		features: md.Features,
		nInputs:  len(md.Features),
	}, nil
}

func (c *ONNXClassifier) Predict(ctx context.Context, row features.Row) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(row.Values) != c.nInputs {
		return Prediction{}, fmt.Errorf("%w: expected %d features, got %d", ErrInference, c.nInputs, len(row.Values))
	}

	data := make([]float32, len(row.Values))
	for i, v := range row.Values {
		data[i] = float32(v)
	}
	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(data))), data)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: failed to create input tensor: %v", ErrInference, err)
	}
	defer inputTensor.Destroy()

	labels := make([]int64, 1)
	labelTensor, err := ort.NewTensor(ort.NewShape(1), labels)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: failed to create label tensor: %v", ErrInference, err)
	}
	defer labelTensor.Destroy()

	probs := make([]float32, 2)
	probTensor, err := ort.NewTensor(ort.NewShape(1, 2), probs)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: failed to create probability tensor: %v", ErrInference, err)
	}
	defer probTensor.Destroy()

	if err := c.session.Run([]ort.Value{inputTensor}, []ort.Value{labelTensor, probTensor}); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	return Prediction{
		Label:          int(labels[0]),
		HasLabel:       true,
		Probability:    float64(probs[1]),
		HasProbability: true,
	}, nil
}

func (c *ONNXClassifier) Features() []string { return c.features }

func (c *ONNXClassifier) Close() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return err
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
