package detector

import "image"

// Box is an axis-aligned face bounding box in the coordinate space of the
// original image. (X1, Y1) is the top-left corner, (X2, Y2) the bottom-right.
// Pixel rows and columns are inclusive of X1/Y1 and exclusive of X2/Y2.
type Box struct {
	X1, Y1 int // top-left
	X2, Y2 int // bottom-right
}

// Width returns box width
func (b Box) Width() int {
	return b.X2 - b.X1
}

// Height returns box height
func (b Box) Height() int {
	return b.Y2 - b.Y1
}

// Rect returns the box as an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Empty reports whether the box encloses no pixels
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}
