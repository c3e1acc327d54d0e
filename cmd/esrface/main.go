package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gocv.io/x/gocv"

	"github.com/dudu/esrface/internal/camera"
	"github.com/dudu/esrface/internal/detector"
	"github.com/dudu/esrface/internal/fer"
	"github.com/dudu/esrface/internal/inference"
	"github.com/dudu/esrface/internal/render"
	"github.com/dudu/esrface/internal/ui"
)

func init() {
	// Lock the main goroutine to the main OS thread.
	// This is required on macOS for OpenCV's highgui (window creation).
	runtime.LockOSThread()
}

type Config struct {
	ImagePath   string
	OutputPath  string
	CameraIndex int
	Backend     string
	GPU         bool
	ModelDir    string
	ORTLibrary  string
	Preview     bool
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.ImagePath, "image", "", "Recognize a single image instead of the webcam")
	flag.StringVar(&config.ImagePath, "i", "", "Recognize a single image (shorthand)")
	flag.StringVar(&config.OutputPath, "out", "", "Write the annotated image to this path (image mode)")
	flag.StringVar(&config.OutputPath, "o", "", "Write the annotated image (shorthand)")
	flag.IntVar(&config.CameraIndex, "camera", 0, "Camera device index")
	flag.IntVar(&config.CameraIndex, "c", 0, "Camera device index (shorthand)")
	flag.StringVar(&config.Backend, "backend", "fast-multiscale", "Face detector: fast, fast-multiscale or cascade")
	flag.StringVar(&config.Backend, "b", "fast-multiscale", "Face detector (shorthand)")
	flag.BoolVar(&config.GPU, "gpu", false, "Run ensemble inference on the GPU")
	flag.BoolVar(&config.GPU, "g", false, "Run ensemble inference on the GPU (shorthand)")
	flag.StringVar(&config.ModelDir, "models", "models", "Directory holding the model files")
	flag.StringVar(&config.ModelDir, "m", "models", "Model directory (shorthand)")
	flag.StringVar(&config.ORTLibrary, "ortlib", "", "Path to the onnxruntime shared library")
	flag.BoolVar(&config.Preview, "preview", true, "Show preview window")
	flag.BoolVar(&config.Preview, "p", true, "Show preview window (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "esrface - facial expression recognition with an ensemble network\n\n")
		fmt.Fprintf(os.Stderr, "Usage: esrface [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  esrface --image face.jpg --out annotated.jpg\n")
		fmt.Fprintf(os.Stderr, "  esrface --camera 0 --backend cascade\n")
		fmt.Fprintf(os.Stderr, "  esrface --camera 0 --gpu\n")
	}

	flag.Parse()
	return config
}

func run(config Config) error {
	backend, err := detector.ParseBackend(config.Backend)
	if err != nil {
		return err
	}

	if err := inference.Initialize(config.ORTLibrary); err != nil {
		return err
	}
	defer inference.Shutdown()

	pipeline := fer.New(fer.Config{
		FastModelPath:     filepath.Join(config.ModelDir, "facefinder"),
		CascadeModelPath:  filepath.Join(config.ModelDir, "frontal_face.xml"),
		EnsembleModelPath: filepath.Join(config.ModelDir, "esr_9.onnx"),
	})
	defer pipeline.Close()

	if config.ImagePath != "" {
		return runImage(config, pipeline, backend)
	}
	return runCamera(config, pipeline, backend)
}

// runImage recognizes a single image and prints the prediction
func runImage(config Config, pipeline *fer.Pipeline, backend detector.Backend) error {
	img := gocv.IMRead(config.ImagePath, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("failed to load image: %s", config.ImagePath)
	}
	defer img.Close()

	result, err := pipeline.Recognize(img, config.GPU, backend)
	if err != nil {
		return err
	}
	defer result.Close()

	if !result.HasFace() {
		fmt.Println("No face detected.")
		return nil
	}

	for i, label := range result.Emotions {
		name := fmt.Sprintf("branch %d", i+1)
		if i == len(result.Emotions)-1 {
			name = "ensemble"
		}
		affect := result.Affects[i]
		fmt.Printf("%-10s %-10s valence %+.3f  arousal %.3f\n",
			name, label, affect.Valence, affect.Arousal)
	}

	render.Overlay(&img, result)
	render.OverlayBranches(&img, result)

	if config.OutputPath != "" {
		if ok := gocv.IMWrite(config.OutputPath, img); !ok {
			return fmt.Errorf("failed to write image: %s", config.OutputPath)
		}
		fmt.Printf("Annotated image written to %s\n", config.OutputPath)
	}

	if config.Preview {
		window := ui.NewWindow("esrface")
		defer window.Close()
		window.Show(&img)
		for window.WaitKey(100) != 27 {
		}
	}

	return nil
}

// runCamera runs the per-frame recognition loop until ESC is pressed
func runCamera(config Config, pipeline *fer.Pipeline, backend detector.Backend) error {
	capture, err := camera.NewCapture(config.CameraIndex)
	if err != nil {
		return err
	}
	defer capture.Close()

	fmt.Printf("Camera %d open at %dx%d, press ESC to quit\n",
		config.CameraIndex, capture.Width(), capture.Height())

	window := ui.NewWindow("esrface")
	defer window.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if !capture.Read(&frame) || frame.Empty() {
			continue
		}

		result, err := pipeline.Recognize(frame, config.GPU, backend)
		if err != nil {
			return err
		}

		render.Overlay(&frame, result)
		render.OverlayBranches(&frame, result)
		result.Close()

		window.Show(&frame)
		if window.WaitKey(1) == 27 {
			return nil
		}
	}
}
