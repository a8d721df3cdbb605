package types

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the box has no area
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Opening is one window, door or other element found on a façade
type Opening struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FacadeAnalysis contains the complete analysis result from the vision model
type FacadeAnalysis struct {
	Facade      Box       `json:"facade"`
	Openings    []Opening `json:"openings"`
	Floors      int       `json:"floors"`
	Description string    `json:"description"`
	// Fallback is set when the model reply could not be parsed
	Fallback bool `json:"-"`
}

// FullFrame covers the whole image
var FullFrame = Box{X: 0, Y: 0, W: 1, H: 1}

