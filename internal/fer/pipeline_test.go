package fer

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/esrface/internal/detector"
	"github.com/dudu/esrface/internal/predictor"
)

// fakeFinder returns a fixed box or error
type fakeFinder struct {
	box *detector.Box
	err error
}

func (f *fakeFinder) Detect(img gocv.Mat, backend detector.Backend) (*detector.Box, error) {
	return f.box, f.err
}

// fakePredictor returns a fixed ensemble output and records the compute
// target and input tensor of the last call
type fakePredictor struct {
	out        predictor.EnsembleOutput
	err        error
	lastTarget predictor.ComputeTarget
	lastTensor *predictor.Tensor
	calls      int
}

func (f *fakePredictor) InputSpec() predictor.InputSpec {
	return predictor.InputSpec{
		Size: 96,
		Mean: [3]float32{0, 0, 0},
		Std:  [3]float32{1, 1, 1},
	}
}

func (f *fakePredictor) Predict(t *predictor.Tensor, target predictor.ComputeTarget) (predictor.EnsembleOutput, error) {
	f.calls++
	f.lastTarget = target
	f.lastTensor = t
	return f.out, f.err
}

func (f *fakePredictor) Close() error { return nil }

// votingOutput builds an ensemble output voting for the given classes
func votingOutput(classes ...int) predictor.EnsembleOutput {
	out := make(predictor.EnsembleOutput, len(classes))
	for i, class := range classes {
		scores := make([]float32, 8)
		scores[class] = 1.0
		out[i] = predictor.BranchPrediction{
			Emotions: scores,
			Affect:   predictor.Affect{Valence: 0.2, Arousal: 0.0},
		}
	}
	return out
}

func TestRecognizeNoFace(t *testing.T) {
	fake := &fakePredictor{out: votingOutput(1)}
	pipeline := NewWithBackends(&fakeFinder{box: nil}, fake)

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(7, 7, 7, 0),
		120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()

	result, err := pipeline.Recognize(img, false, detector.BackendFast)
	if err != nil {
		t.Fatalf("no face must not be an error, got %v", err)
	}
	defer result.Close()

	if result.HasFace() {
		t.Error("expected no face")
	}
	if result.Face != nil || result.Box != nil {
		t.Error("face fields must be absent together")
	}
	if result.Emotions != nil || result.Affects != nil {
		t.Error("prediction fields must be absent together")
	}
	if fake.calls != 0 {
		t.Errorf("predictor must not run without a face, got %d calls", fake.calls)
	}

	// original image preserved unchanged
	if result.Input.Rows() != 120 || result.Input.Cols() != 160 {
		t.Errorf("input image changed: %dx%d", result.Input.Cols(), result.Input.Rows())
	}
	if v := result.Input.GetVecbAt(5, 5); v[0] != 7 || v[1] != 7 || v[2] != 7 {
		t.Errorf("input pixels changed: %v", v)
	}
}

func TestRecognizeFullPath(t *testing.T) {
	box := &detector.Box{X1: 40, Y1: 30, X2: 120, Y2: 110}
	fake := &fakePredictor{out: votingOutput(1, 1, 2)}
	pipeline := NewWithBackends(&fakeFinder{box: box}, fake)

	img := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer img.Close()

	result, err := pipeline.Recognize(img, false, detector.BackendFast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer result.Close()

	if !result.HasFace() {
		t.Fatal("expected a face")
	}
	if *result.Box != *box {
		t.Errorf("expected box %+v, got %+v", box, result.Box)
	}
	if result.Face == nil || result.Face.Rows() != 80 || result.Face.Cols() != 80 {
		t.Errorf("expected an 80x80 face crop")
	}

	if len(result.Emotions) != 4 || len(result.Affects) != 4 {
		t.Fatalf("expected 3 branches plus consensus, got %d/%d",
			len(result.Emotions), len(result.Affects))
	}
	if result.Consensus() != "Happy" {
		t.Errorf("expected consensus Happy, got %q", result.Consensus())
	}

	// the predictor received a batch of one normalized face
	if fake.lastTensor == nil || fake.lastTensor.Shape[0] != 1 {
		t.Error("expected a batched input tensor")
	}
}

func TestRecognizeComputeTargetPerCall(t *testing.T) {
	box := &detector.Box{X1: 0, Y1: 0, X2: 50, Y2: 50}
	fake := &fakePredictor{out: votingOutput(3)}
	pipeline := NewWithBackends(&fakeFinder{box: box}, fake)

	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	result, err := pipeline.Recognize(img, true, detector.BackendFast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result.Close()
	if fake.lastTarget != predictor.TargetAccelerator {
		t.Errorf("expected accelerator target, got %v", fake.lastTarget)
	}

	result, err = pipeline.Recognize(img, false, detector.BackendFast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result.Close()
	if fake.lastTarget != predictor.TargetCPU {
		t.Errorf("expected cpu target, got %v", fake.lastTarget)
	}
}

func TestRecognizeDetectorErrorPropagates(t *testing.T) {
	pipeline := NewWithBackends(
		&fakeFinder{err: detector.ErrUnsupportedBackend},
		&fakePredictor{})

	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := pipeline.Recognize(img, false, detector.Backend(42))
	if !errors.Is(err, detector.ErrUnsupportedBackend) {
		t.Errorf("expected ErrUnsupportedBackend, got %v", err)
	}
}

func TestRecognizePredictorErrorPropagates(t *testing.T) {
	box := &detector.Box{X1: 0, Y1: 0, X2: 50, Y2: 50}
	pipeline := NewWithBackends(
		&fakeFinder{box: box},
		&fakePredictor{err: predictor.ErrInitialization})

	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := pipeline.Recognize(img, false, detector.BackendFast)
	if !errors.Is(err, predictor.ErrInitialization) {
		t.Errorf("expected ErrInitialization, got %v", err)
	}
}

func TestRecognizeEmptyEnsemblePropagates(t *testing.T) {
	box := &detector.Box{X1: 0, Y1: 0, X2: 50, Y2: 50}
	pipeline := NewWithBackends(
		&fakeFinder{box: box},
		&fakePredictor{out: predictor.EnsembleOutput{}})

	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	if _, err := pipeline.Recognize(img, false, detector.BackendFast); err == nil {
		t.Error("expected an invalid ensemble error")
	}
}

func TestRecognizeBoxOutsideImage(t *testing.T) {
	// a box entirely past the image edge degenerates to no face
	box := &detector.Box{X1: 500, Y1: 500, X2: 600, Y2: 600}
	fake := &fakePredictor{out: votingOutput(1)}
	pipeline := NewWithBackends(&fakeFinder{box: box}, fake)

	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	result, err := pipeline.Recognize(img, false, detector.BackendFast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer result.Close()

	if result.HasFace() {
		t.Error("expected a degenerate box to count as no face")
	}
	if fake.calls != 0 {
		t.Error("predictor must not run for a degenerate box")
	}
}
