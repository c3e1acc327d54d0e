package aggregate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/dudu/esrface/internal/predictor"
)

// ErrInvalidEnsemble is the class of contract violations by the ensemble
// predictor; the more specific errors below wrap it.
var (
	ErrInvalidEnsemble    = errors.New("invalid ensemble output")
	ErrEmptyEnsemble      = fmt.Errorf("%w: no branches", ErrInvalidEnsemble)
	ErrClassCountMismatch = fmt.Errorf("%w: branches disagree on emotion class count", ErrInvalidEnsemble)
)

// Result is the aggregated ensemble prediction. Emotions holds one label per
// branch followed by the consensus label; Affects holds one (valence,
// arousal) pair per branch followed by the ensemble mean. Both slices have
// length branches+1 and match EnsembleOutput's branch order.
type Result struct {
	Emotions []string
	Affects  []predictor.Affect
}

// Consensus returns the majority vote emotion label
func (r *Result) Consensus() string {
	return r.Emotions[len(r.Emotions)-1]
}

// ConsensusAffect returns the ensemble mean affect
func (r *Result) ConsensusAffect() predictor.Affect {
	return r.Affects[len(r.Affects)-1]
}

// Aggregate turns per-branch ensemble outputs into a consensus prediction.
//
// Each branch votes for its highest scoring emotion class; the consensus
// label is the class with the most votes, ties resolved to the lowest class
// index. Per-branch arousal is renormalized from [-1, 1] to [0, 1] before
// averaging; valence is passed through unchanged, mirroring the training
// setup (the asymmetry is intentional). The consensus affect is the
// elementwise mean over branches, not a vote.
func Aggregate(out predictor.EnsembleOutput) (*Result, error) {
	if len(out) == 0 {
		return nil, ErrEmptyEnsemble
	}

	numClasses := len(out[0].Emotions)
	if numClasses == 0 {
		return nil, fmt.Errorf("%w: branch 0 has no emotion scores", ErrInvalidEnsemble)
	}

	votes := make([]int, numClasses)
	emotions := make([]string, 0, len(out)+1)
	affects := make([]predictor.Affect, 0, len(out)+1)
	valences := make([]float64, 0, len(out))
	arousals := make([]float64, 0, len(out))

	for i, branch := range out {
		if len(branch.Emotions) != numClasses {
			return nil, fmt.Errorf("%w: branch %d has %d classes, want %d",
				ErrClassCountMismatch, i, len(branch.Emotions), numClasses)
		}

		class := argmax(branch.Emotions)
		votes[class]++
		emotions = append(emotions, ClassName(class))

		arousal := clamp((branch.Affect.Arousal+1)/2, 0, 1)
		affects = append(affects, predictor.Affect{
			Valence: branch.Affect.Valence,
			Arousal: arousal,
		})
		valences = append(valences, float64(branch.Affect.Valence))
		arousals = append(arousals, float64(arousal))
	}

	affects = append(affects, predictor.Affect{
		Valence: float32(stat.Mean(valences, nil)),
		Arousal: float32(stat.Mean(arousals, nil)),
	})
	emotions = append(emotions, ClassName(argmaxInt(votes)))

	return &Result{Emotions: emotions, Affects: affects}, nil
}

// argmax returns the index of the first maximal score
func argmax(scores []float32) int {
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best
}

// argmaxInt returns the index of the first maximal vote count
func argmaxInt(votes []int) int {
	best := 0
	for i, v := range votes {
		if v > votes[best] {
			best = i
		}
	}
	return best
}

func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
