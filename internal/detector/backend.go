package detector

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// Backend selects the face localization method
type Backend int

const (
	// BackendFast runs the pigo classifier once at full resolution.
	BackendFast Backend = iota + 1
	// BackendFastMultiscale runs the pigo classifier on a downscaled image,
	// retrying at a coarser scale list for large inputs.
	BackendFastMultiscale
	// BackendCascade runs the OpenCV Haar cascade classifier.
	BackendCascade
)

// ErrUnsupportedBackend is returned when an unrecognized Backend value is
// passed to Detect.
var ErrUnsupportedBackend = errors.New("unsupported face detector backend")

// ErrInitialization is returned when a detector model resource cannot be
// loaded on first use. The failure is cached, later calls return it again.
var ErrInitialization = errors.New("face detector initialization failed")

// String returns the flag spelling of the backend
func (b Backend) String() string {
	switch b {
	case BackendFast:
		return "fast"
	case BackendFastMultiscale:
		return "fast-multiscale"
	case BackendCascade:
		return "cascade"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackend converts a flag value into a Backend
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "fast":
		return BackendFast, nil
	case "fast-multiscale":
		return BackendFastMultiscale, nil
	case "cascade":
		return BackendCascade, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedBackend, s)
	}
}

// Images with more pixels than this are searched with the coarse scale list.
const multiscalePixelThreshold = 500 * 500

var (
	smallImageScales = []float64{0.5, 1.0}
	largeImageScales = []float64{0.2, 0.5}
)

// Config holds the model file locations for the detector backends
type Config struct {
	// FastModelPath is the pigo facefinder cascade binary.
	FastModelPath string
	// CascadeModelPath is the OpenCV Haar cascade XML file.
	CascadeModelPath string
}

// Registry owns the lazily constructed detector handles. Backends load their
// model files on first use and are reused for the lifetime of the registry,
// so it is safe and cheap to call Detect per video frame. A Registry is safe
// for concurrent use.
type Registry struct {
	cfg Config

	fastOnce sync.Once
	fast     *fastDetector
	fastErr  error

	haarOnce sync.Once
	haar     *haarDetector
	haarErr  error

	// construction hooks, replaced in tests
	newFast func() (*fastDetector, error)
	newHaar func() (*haarDetector, error)
}

// NewRegistry creates a registry for the given model files. No model is
// loaded until the backend is first used.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{cfg: cfg}
	r.newFast = func() (*fastDetector, error) { return newFastDetector(cfg.FastModelPath) }
	r.newHaar = func() (*haarDetector, error) { return newHaarDetector(cfg.CascadeModelPath) }
	return r
}

// fastDetector returns the cached pigo handle, constructing it on first use
func (r *Registry) fastDetector() (*fastDetector, error) {
	r.fastOnce.Do(func() {
		r.fast, r.fastErr = r.newFast()
	})
	return r.fast, r.fastErr
}

// haarDetector returns the cached cascade handle, constructing it on first use
func (r *Registry) haarDetector() (*haarDetector, error) {
	r.haarOnce.Do(func() {
		r.haar, r.haarErr = r.newHaar()
	})
	return r.haar, r.haarErr
}

// Detect locates the best face in a BGR color image and returns its bounding
// box in the image's coordinate space, or nil when no face is found. When the
// underlying backend reports several candidates only the first one in its
// native order is kept; no size or confidence ranking is applied.
func (r *Registry) Detect(img gocv.Mat, backend Backend) (*Box, error) {
	if backend != BackendFast && backend != BackendFastMultiscale &&
		backend != BackendCascade {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBackend, int(backend))
	}

	// detectors operate on greyscale
	grey := gocv.NewMat()
	defer grey.Close()
	gocv.CvtColor(img, &grey, gocv.ColorBGRToGray)

	var boxes []Box

	switch backend {
	case BackendFast:
		fast, err := r.fastDetector()
		if err != nil {
			return nil, err
		}
		boxes = fast.detect(grey)

	case BackendFastMultiscale:
		fast, err := r.fastDetector()
		if err != nil {
			return nil, err
		}
		boxes = detectMultiscale(grey, fast.detect)

	case BackendCascade:
		haar, err := r.haarDetector()
		if err != nil {
			return nil, err
		}
		boxes = haar.detect(grey)
	}

	return firstBox(boxes), nil
}

// Close releases any detector handles that were constructed
func (r *Registry) Close() error {
	if r.haar != nil {
		return r.haar.Close()
	}
	return nil
}

// locateFunc runs a detector over a greyscale image and returns candidate
// boxes in the detector's native order.
type locateFunc func(grey gocv.Mat) []Box

// detectMultiscale searches a downscaled copy of the greyscale image to
// speed up detection. The scale list is chosen by pixel count and walked in
// order, stopping at the first scale that yields a detection. Returned boxes
// are mapped back to the original resolution.
func detectMultiscale(grey gocv.Mat, locate locateFunc) []Box {
	scales := smallImageScales
	if grey.Rows()*grey.Cols() > multiscalePixelThreshold {
		scales = largeImageScales
	}

	scaled := gocv.NewMat()
	defer scaled.Close()

	for _, scale := range scales {
		gocv.Resize(grey, &scaled, image.Point{}, scale, scale,
			gocv.InterpolationArea)

		boxes := locate(scaled)
		if len(boxes) == 0 {
			continue
		}

		inv := 1 / scale
		rescaled := make([]Box, len(boxes))
		for i, b := range boxes {
			rescaled[i] = Box{
				X1: int(math.Round(float64(b.X1) * inv)),
				Y1: int(math.Round(float64(b.Y1) * inv)),
				X2: int(math.Round(float64(b.X2) * inv)),
				Y2: int(math.Round(float64(b.Y2) * inv)),
			}
		}
		return rescaled
	}

	return nil
}

// firstBox keeps the first candidate in the backend's native order. A box
// whose coordinate sum is zero is the backends' "nothing found" marker and
// maps to nil.
func firstBox(boxes []Box) *Box {
	if len(boxes) == 0 {
		return nil
	}
	b := boxes[0]
	if b.X1+b.Y1+b.X2+b.Y2 == 0 {
		return nil
	}
	return &b
}
