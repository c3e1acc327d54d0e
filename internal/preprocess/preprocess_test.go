package preprocess

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/esrface/internal/predictor"
)

const epsilon = 1e-5

func closeTo(a, b float32) bool {
	d := a - b
	return d < epsilon && d > -epsilon
}

func TestForInputShape(t *testing.T) {
	face := gocv.NewMatWithSize(48, 32, gocv.MatTypeCV8UC3)
	defer face.Close()

	spec := predictor.InputSpec{
		Size: 96,
		Mean: [3]float32{0, 0, 0},
		Std:  [3]float32{1, 1, 1},
	}

	tensor, err := ForInput(face, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantShape := []int64{1, 3, 96, 96}
	if len(tensor.Shape) != len(wantShape) {
		t.Fatalf("expected shape %v, got %v", wantShape, tensor.Shape)
	}
	for i, dim := range wantShape {
		if tensor.Shape[i] != dim {
			t.Fatalf("expected shape %v, got %v", wantShape, tensor.Shape)
		}
	}

	if len(tensor.Data) != 3*96*96 {
		t.Errorf("expected %d values, got %d", 3*96*96, len(tensor.Data))
	}
}

func TestForInputChannelOrderAndScaling(t *testing.T) {
	// a uniform pure blue image in BGR
	face := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0),
		16, 16, gocv.MatTypeCV8UC3)
	defer face.Close()

	spec := predictor.InputSpec{
		Size: 8,
		Mean: [3]float32{0, 0, 0},
		Std:  [3]float32{1, 1, 1},
	}

	tensor, err := ForInput(face, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plane := spec.Size * spec.Size

	// after BGR to RGB conversion blue lands in the last plane, scaled to 1
	if !closeTo(tensor.Data[0], 0) {
		t.Errorf("expected red plane 0, got %f", tensor.Data[0])
	}
	if !closeTo(tensor.Data[plane], 0) {
		t.Errorf("expected green plane 0, got %f", tensor.Data[plane])
	}
	if !closeTo(tensor.Data[2*plane], 1) {
		t.Errorf("expected blue plane 1, got %f", tensor.Data[2*plane])
	}
}

func TestForInputNormalization(t *testing.T) {
	// uniform mid grey
	face := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0),
		16, 16, gocv.MatTypeCV8UC3)
	defer face.Close()

	spec := predictor.InputSpec{
		Size: 4,
		Mean: [3]float32{0.5, 0.5, 0.5},
		Std:  [3]float32{0.25, 0.25, 0.25},
	}

	tensor, err := ForInput(face, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (128/255 - 0.5) / 0.25
	want := (float32(128)/255 - 0.5) / 0.25
	for i, v := range tensor.Data {
		if !closeTo(v, want) {
			t.Fatalf("value %d: expected %f, got %f", i, want, v)
		}
	}
}

func TestForInputEmptyFace(t *testing.T) {
	face := gocv.NewMat()
	defer face.Close()

	if _, err := ForInput(face, predictor.InputSpec{Size: 96}); err == nil {
		t.Error("expected an error for an empty face image")
	}
}

func TestForInputLeavesSourceUntouched(t *testing.T) {
	face := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0),
		32, 32, gocv.MatTypeCV8UC3)
	defer face.Close()

	spec := predictor.InputSpec{
		Size: 96,
		Mean: [3]float32{0, 0, 0},
		Std:  [3]float32{1, 1, 1},
	}

	if _, err := ForInput(face, spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if face.Rows() != 32 || face.Cols() != 32 {
		t.Errorf("source image was resized to %dx%d", face.Cols(), face.Rows())
	}
	if v := face.GetVecbAt(0, 0); v[0] != 10 || v[1] != 20 || v[2] != 30 {
		t.Errorf("source pixels changed: %v", v)
	}
}
