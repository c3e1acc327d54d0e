package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/esrface/internal/fer"
)

var (
	boxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	fillColor  = color.RGBA{R: 0, G: 128, B: 0, A: 255}
)

const (
	fontFace      = gocv.FontHersheySimplex
	fontScale     = 0.6
	fontThickness = 1
	lineThickness = 2
	labelPad      = 4
)

// Overlay draws the face box and the consensus prediction onto the frame.
// Frames without a detected face are left untouched.
func Overlay(frame *gocv.Mat, res *fer.Result) {
	if !res.HasFace() {
		return
	}

	rect := res.Box.Rect()
	gocv.Rectangle(frame, rect, boxColor, lineThickness)

	affect := res.ConsensusAffect()
	text := fmt.Sprintf("%s  V %.2f  A %.2f", res.Consensus(),
		affect.Valence, affect.Arousal)
	textSize := gocv.GetTextSize(text, fontFace, fontScale, fontThickness)

	// label box sits on top of the face box
	labelRect := image.Rect(rect.Min.X-lineThickness/2,
		rect.Min.Y-textSize.Y-2*labelPad,
		rect.Min.X+textSize.X+2*labelPad, rect.Min.Y)
	gocv.Rectangle(frame, labelRect, fillColor, -1)

	textPos := image.Pt(rect.Min.X+labelPad, rect.Min.Y-labelPad)
	gocv.PutText(frame, text, textPos, fontFace, fontScale, labelColor,
		fontThickness)
}

// OverlayBranches lists the per-branch labels and affects in the top left
// corner of the frame, one line per branch with the consensus last.
func OverlayBranches(frame *gocv.Mat, res *fer.Result) {
	if !res.HasFace() {
		return
	}

	lineHeight := gocv.GetTextSize("Ag", fontFace, fontScale, fontThickness).Y +
		2*labelPad

	for i, label := range res.Emotions {
		name := fmt.Sprintf("branch %d", i+1)
		if i == len(res.Emotions)-1 {
			name = "ensemble"
		}

		affect := res.Affects[i]
		text := fmt.Sprintf("%s: %s  V %.2f  A %.2f", name, label,
			affect.Valence, affect.Arousal)

		pos := image.Pt(labelPad, (i+1)*lineHeight)
		gocv.PutText(frame, text, pos, fontFace, fontScale, labelColor,
			fontThickness)
	}
}
