package fer

import (
	"gocv.io/x/gocv"

	"github.com/dudu/esrface/internal/detector"
	"github.com/dudu/esrface/internal/predictor"
)

// Result bundles everything a display layer needs to annotate one frame.
// It is constructed once per Recognize call and not mutated afterwards.
// When no face was found only Input is set; Face, Box, Emotions and Affects
// are absent together.
type Result struct {
	// Input is the original image recognition ran on, owned by the caller.
	Input gocv.Mat

	// Face is an owned crop of the detected face region.
	Face *gocv.Mat

	// Box is the detected face location in Input's coordinate space.
	Box *detector.Box

	// Emotions holds the per-branch emotion labels followed by the majority
	// vote consensus label.
	Emotions []string

	// Affects holds the per-branch (valence, arousal) pairs followed by the
	// ensemble mean. Arousal is renormalized to [0, 1].
	Affects []predictor.Affect
}

// HasFace reports whether a face was detected in the input image
func (r *Result) HasFace() bool {
	return r.Box != nil
}

// Consensus returns the majority vote emotion label, or "" when no face was
// found
func (r *Result) Consensus() string {
	if len(r.Emotions) == 0 {
		return ""
	}
	return r.Emotions[len(r.Emotions)-1]
}

// ConsensusAffect returns the ensemble mean affect
func (r *Result) ConsensusAffect() predictor.Affect {
	if len(r.Affects) == 0 {
		return predictor.Affect{}
	}
	return r.Affects[len(r.Affects)-1]
}

// Close releases the face crop. Input is owned by the caller and left open.
func (r *Result) Close() error {
	if r.Face != nil {
		return r.Face.Close()
	}
	return nil
}
