package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

const (
	haarScaleFactor  = 1.2
	haarMinNeighbors = 9
	haarMinSize      = 60
)

// haarDetector wraps the OpenCV Haar feature cascade classifier.
// DetectMultiScale is not safe for concurrent calls on one classifier, so
// detection is serialized behind a mutex. This is a known throughput
// bottleneck when the cascade backend is used from parallel frame workers.
type haarDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// newHaarDetector loads the cascade template XML from the given path
func newHaarDetector(path string) (*haarDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: cascade template %s: %v",
			ErrInitialization, path, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: loading cascade template %s",
			ErrInitialization, path)
	}

	return &haarDetector{classifier: classifier}, nil
}

// detect runs the cascade over a greyscale image at full resolution and
// returns candidate boxes in OpenCV's native order.
func (d *haarDetector) detect(grey gocv.Mat) []Box {
	d.mu.Lock()
	defer d.mu.Unlock()

	rects := d.classifier.DetectMultiScaleWithParams(grey,
		haarScaleFactor, haarMinNeighbors, 0,
		image.Pt(haarMinSize, haarMinSize), image.Point{})

	boxes := make([]Box, 0, len(rects))
	for _, rect := range rects {
		boxes = append(boxes, Box{
			X1: rect.Min.X,
			Y1: rect.Min.Y,
			X2: rect.Max.X,
			Y2: rect.Max.Y,
		})
	}

	return boxes
}

// Close releases the cascade classifier
func (d *haarDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
