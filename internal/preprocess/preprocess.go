package preprocess

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/esrface/internal/predictor"
)

// ForInput converts a cropped BGR face image into the normalized tensor the
// predictor expects: resized to the spec's square input size, RGB channel
// order, float32 pixels scaled to [0, 1], per-channel (x-mean)/std
// normalization, CHW layout with a leading batch dimension of 1. Pure
// function of its inputs; the face Mat is left untouched.
func ForInput(face gocv.Mat, spec predictor.InputSpec) (*predictor.Tensor, error) {
	if face.Empty() {
		return nil, errors.New("preprocess: empty face image")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(face, &resized, image.Pt(spec.Size, spec.Size), 0, 0,
		gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	// interleaved HWC bytes to planar CHW float32
	pixels := rgb.ToBytes()
	size := spec.Size
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			base := (y*size + x) * 3
			for c := 0; c < 3; c++ {
				v := float32(pixels[base+c]) / 255.0
				data[c*plane+y*size+x] = (v - spec.Mean[c]) / spec.Std[c]
			}
		}
	}

	return &predictor.Tensor{
		Shape: []int64{1, 3, int64(size), int64(size)},
		Data:  data,
	}, nil
}
