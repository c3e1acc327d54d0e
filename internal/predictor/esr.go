package predictor

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/esrface/internal/inference"
)

// ErrInitialization is returned when the ensemble weights cannot be loaded
// or a session for the requested compute target cannot be created. The
// failure is cached per target and returned again on later use.
var ErrInitialization = errors.New("ensemble predictor initialization failed")

const (
	// ensemble-with-shared-representations network layout
	esrBranches  = 9
	esrClasses   = 8
	esrInputSize = 96
)

// ESR runs the ensemble with shared representations network through ONNX
// Runtime. The exported model has one input ("input") and two outputs per
// branch: emotion_<i> with one score per class and affect_<i> with
// (valence, arousal). A session is created per compute target on first use
// and cached for the process lifetime; sessions are safe for concurrent Run
// calls, so Predict needs no further locking.
type ESR struct {
	modelPath string

	cpuOnce sync.Once
	cpu     *inference.Session
	cpuErr  error

	accelOnce sync.Once
	accel     *inference.Session
	accelErr  error
}

// NewESR creates a predictor for the given ONNX model file. No weights are
// loaded until the first Predict call.
func NewESR(modelPath string) *ESR {
	return &ESR{modelPath: modelPath}
}

// InputSpec declares the face tensor format the ensemble was trained against
func (e *ESR) InputSpec() InputSpec {
	return InputSpec{
		Size: esrInputSize,
		Mean: [3]float32{0.0, 0.0, 0.0},
		Std:  [3]float32{1.0, 1.0, 1.0},
	}
}

// outputNames lists the branch output tensors in branch order, emotions
// first then affects
func outputNames() []string {
	names := make([]string, 0, esrBranches*2)
	for i := 0; i < esrBranches; i++ {
		names = append(names, fmt.Sprintf("emotion_%d", i))
	}
	for i := 0; i < esrBranches; i++ {
		names = append(names, fmt.Sprintf("affect_%d", i))
	}
	return names
}

// session returns the cached session for the target, creating it on first use
func (e *ESR) session(target ComputeTarget) (*inference.Session, error) {
	switch target {
	case TargetCPU:
		e.cpuOnce.Do(func() {
			e.cpu, e.cpuErr = e.newSession(false)
		})
		return e.cpu, e.cpuErr

	case TargetAccelerator:
		e.accelOnce.Do(func() {
			e.accel, e.accelErr = e.newSession(true)
		})
		return e.accel, e.accelErr

	default:
		return nil, fmt.Errorf("%w: unknown compute target %d",
			ErrInitialization, int(target))
	}
}

func (e *ESR) newSession(accelerated bool) (*inference.Session, error) {
	s, err := inference.NewSession(e.modelPath, []string{"input"},
		outputNames(), accelerated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	return s, nil
}

// Predict runs all nine branches over a normalized face tensor and returns
// their raw emotion scores and affect estimates in branch order.
func (e *ESR) Predict(t *Tensor, target ComputeTarget) (EnsembleOutput, error) {
	sess, err := e.session(target)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := make([]ort.Value, esrBranches*2)
	emotionTensors := make([]*ort.Tensor[float32], esrBranches)
	affectTensors := make([]*ort.Tensor[float32], esrBranches)

	for i := 0; i < esrBranches; i++ {
		emotionTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, esrClasses})
		if err != nil {
			return nil, fmt.Errorf("failed to create emotion tensor: %w", err)
		}
		emotionTensors[i] = emotionTensor
		outputs[i] = emotionTensor

		affectTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 2})
		if err != nil {
			return nil, fmt.Errorf("failed to create affect tensor: %w", err)
		}
		affectTensors[i] = affectTensor
		outputs[esrBranches+i] = affectTensor
	}
	defer func() {
		for i := 0; i < esrBranches; i++ {
			emotionTensors[i].Destroy()
			affectTensors[i].Destroy()
		}
	}()

	if err := sess.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("ensemble inference failed: %w", err)
	}

	out := make(EnsembleOutput, esrBranches)
	for i := 0; i < esrBranches; i++ {
		scores := make([]float32, esrClasses)
		copy(scores, emotionTensors[i].GetData())

		affect := affectTensors[i].GetData()
		out[i] = BranchPrediction{
			Emotions: scores,
			Affect:   Affect{Valence: affect[0], Arousal: affect[1]},
		}
	}

	return out, nil
}

// Close destroys any sessions that were created
func (e *ESR) Close() error {
	var errs []error

	if e.cpu != nil {
		if err := e.cpu.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.accel != nil {
		if err := e.accel.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
