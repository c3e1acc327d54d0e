package detector

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

const (
	// detection window limits in pixels
	fastMinSize = 60
	// quality threshold below which pigo detections are discarded
	fastQualityThreshold = 5.0
	// intersection over union used to cluster overlapping detections
	fastClusterIoU = 0.2

	fastShiftFactor = 0.1
	fastScaleFactor = 1.1
)

// fastDetector wraps the pigo pixel intensity comparison classifier. The
// unpacked cascade is read-only, so the detector is safe for concurrent use.
type fastDetector struct {
	classifier *pigo.Pigo
}

// newFastDetector unpacks the facefinder cascade binary from the given path
func newFastDetector(path string) (*fastDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading cascade file %s: %v",
			ErrInitialization, path, err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking cascade file %s: %v",
			ErrInitialization, path, err)
	}

	return &fastDetector{classifier: classifier}, nil
}

// detect runs the classifier over a greyscale image and returns candidate
// face boxes in the classifier's cluster order.
func (d *fastDetector) detect(grey gocv.Mat) []Box {
	rows := grey.Rows()
	cols := grey.Cols()

	maxSize := rows
	if cols > maxSize {
		maxSize = cols
	}

	params := pigo.CascadeParams{
		MinSize:     fastMinSize,
		MaxSize:     maxSize,
		ShiftFactor: fastShiftFactor,
		ScaleFactor: fastScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: grey.ToBytes(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, fastClusterIoU)

	boxes := make([]Box, 0, len(dets))
	for _, det := range dets {
		if det.Q < fastQualityThreshold {
			continue
		}
		// pigo reports a detection as a window center plus scale
		half := det.Scale / 2
		boxes = append(boxes, Box{
			X1: det.Col - half,
			Y1: det.Row - half,
			X2: det.Col - half + det.Scale,
			Y2: det.Row - half + det.Scale,
		})
	}

	return boxes
}
