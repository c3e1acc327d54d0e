package aggregate

import "fmt"

// classNames is the AffectNet categorical scheme the ensemble was trained
// against. The index order is an external contract shared with the model
// weights and must not be reordered.
var classNames = []string{
	"Neutral",
	"Happy",
	"Sad",
	"Surprise",
	"Fear",
	"Disgust",
	"Anger",
	"Contempt",
}

// ClassName maps an emotion class index to its human readable label
func ClassName(idx int) string {
	if idx < 0 || idx >= len(classNames) {
		return fmt.Sprintf("Class %d", idx)
	}
	return classNames[idx]
}

// ClassNames returns a copy of the label table in class index order
func ClassNames() []string {
	names := make([]string, len(classNames))
	copy(names, classNames)
	return names
}
