package predictor

// Affect is a continuous affect prediction. Valence is pleasantness,
// Arousal is activation intensity.
type Affect struct {
	Valence float32
	Arousal float32
}

// BranchPrediction is the raw output of one ensemble branch: unnormalized
// emotion class scores plus an affect estimate with both dimensions in
// [-1, 1].
type BranchPrediction struct {
	Emotions []float32
	Affect   Affect
}

// EnsembleOutput holds one prediction per branch. Branch order is stable
// across calls but carries no semantic meaning.
type EnsembleOutput []BranchPrediction

// InputSpec describes the tensor format a predictor was trained against
type InputSpec struct {
	// Size is the square input resolution in pixels.
	Size int
	// Mean and Std are the per-channel (RGB order) normalization constants
	// applied after scaling pixels to [0, 1].
	Mean [3]float32
	Std  [3]float32
}

// Tensor is a dense float32 tensor in NCHW layout
type Tensor struct {
	Shape []int64
	Data  []float32
}

// ComputeTarget selects the device inference runs on
type ComputeTarget int

const (
	TargetCPU ComputeTarget = iota
	TargetAccelerator
)

// TargetFor maps the caller's accelerator flag to a compute target
func TargetFor(useAccelerator bool) ComputeTarget {
	if useAccelerator {
		return TargetAccelerator
	}
	return TargetCPU
}

// String returns a readable device name
func (t ComputeTarget) String() string {
	if t == TargetAccelerator {
		return "accelerator"
	}
	return "cpu"
}

// Predictor is the ensemble inference capability. Implementations load their
// weights lazily and must be safe for concurrent Predict calls; callers may
// request different compute targets concurrently.
type Predictor interface {
	// InputSpec declares the tensor format Predict expects.
	InputSpec() InputSpec
	// Predict runs all branches over a normalized face tensor.
	Predict(t *Tensor, target ComputeTarget) (EnsembleOutput, error)
	// Close releases any loaded sessions.
	Close() error
}
