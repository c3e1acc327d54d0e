package fer

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/esrface/internal/aggregate"
	"github.com/dudu/esrface/internal/detector"
	"github.com/dudu/esrface/internal/predictor"
	"github.com/dudu/esrface/internal/preprocess"
)

// FaceFinder locates the best face in a color image, returning nil when no
// face is found. Implemented by detector.Registry.
type FaceFinder interface {
	Detect(img gocv.Mat, backend detector.Backend) (*detector.Box, error)
}

// Config holds the model file locations for the pipeline
type Config struct {
	// FastModelPath is the pigo facefinder cascade binary.
	FastModelPath string
	// CascadeModelPath is the OpenCV Haar cascade XML file.
	CascadeModelPath string
	// EnsembleModelPath is the ensemble network's ONNX export.
	EnsembleModelPath string
}

// Pipeline orchestrates facial expression recognition: face detection,
// preprocessing, ensemble inference and aggregation. It owns the cached
// detector and predictor handles, which load their model files lazily on
// first use. A Pipeline is safe for concurrent Recognize calls.
type Pipeline struct {
	finder    FaceFinder
	predictor predictor.Predictor

	// registry is kept for Close; nil when the pipeline was built around a
	// custom FaceFinder.
	registry *detector.Registry
}

// New creates a recognition pipeline for the given model files. Nothing is
// loaded until the first Recognize call.
func New(cfg Config) *Pipeline {
	registry := detector.NewRegistry(detector.Config{
		FastModelPath:    cfg.FastModelPath,
		CascadeModelPath: cfg.CascadeModelPath,
	})

	return &Pipeline{
		finder:    registry,
		predictor: predictor.NewESR(cfg.EnsembleModelPath),
		registry:  registry,
	}
}

// NewWithBackends creates a pipeline around custom detection and prediction
// implementations. Used to swap in deterministic fakes in tests and
// alternative model runtimes.
func NewWithBackends(finder FaceFinder, p predictor.Predictor) *Pipeline {
	return &Pipeline{finder: finder, predictor: p}
}

// Recognize detects a face in the input image and classifies its expression.
//
// An image with no detectable face is a normal outcome, not an error: the
// returned Result carries only the input image. Detector, predictor and
// aggregation errors propagate to the caller unmodified. The accelerator
// flag is resolved once per call, so concurrent calls may target different
// devices.
func (p *Pipeline) Recognize(img gocv.Mat, useAccelerator bool, backend detector.Backend) (*Result, error) {
	box, err := p.finder.Detect(img, backend)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return &Result{Input: img}, nil
	}

	// the detected box may poke past the image edge after rescaling; crop
	// the overlap only
	rect := box.Rect().Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return &Result{Input: img}, nil
	}

	region := img.Region(rect)
	face := region.Clone()
	region.Close()

	tensor, err := preprocess.ForInput(face, p.predictor.InputSpec())
	if err != nil {
		face.Close()
		return nil, err
	}

	out, err := p.predictor.Predict(tensor, predictor.TargetFor(useAccelerator))
	if err != nil {
		face.Close()
		return nil, err
	}

	agg, err := aggregate.Aggregate(out)
	if err != nil {
		face.Close()
		return nil, err
	}

	return &Result{
		Input:    img,
		Face:     &face,
		Box:      box,
		Emotions: agg.Emotions,
		Affects:  agg.Affects,
	}, nil
}

// Close releases the detector and predictor handles
func (p *Pipeline) Close() error {
	var firstErr error

	if p.registry != nil {
		if err := p.registry.Close(); err != nil {
			firstErr = err
		}
	}
	if p.predictor != nil {
		if err := p.predictor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
