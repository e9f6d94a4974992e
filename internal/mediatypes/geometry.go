package mediatypes

// Resolution is a width and height in pixels.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// NewResolution returns a Resolution.
func NewResolution(width, height uint32) Resolution {
	return Resolution{Width: width, Height: height}
}

// AspectRatio returns the reduced width:height ratio.
func (r Resolution) AspectRatio() AspectRatio {
	return NewAspectRatio(r.Width, r.Height)
}

// Orientation returns the orientation implied by the resolution.
func (r Resolution) Orientation() Orientation {
	return r.AspectRatio().Orientation()
}

// AspectRatio is a reduced fraction of width over height. A zero ratio means
// one of the sides was zero.
type AspectRatio struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// NewAspectRatio reduces width:height by their greatest common divisor.
// Either side being zero yields the zero ratio.
func NewAspectRatio(width, height uint32) AspectRatio {
	if width == 0 || height == 0 {
		return AspectRatio{}
	}
	d := gcd(width, height)
	return AspectRatio{Width: width / d, Height: height / d}
}

// IsZero reports whether the ratio is undefined.
func (a AspectRatio) IsZero() bool {
	return a.Width == 0 || a.Height == 0
}

// Orientation classifies the ratio.
func (a AspectRatio) Orientation() Orientation {
	switch {
	case a.Width > a.Height:
		return OrientationLandscape
	case a.Width < a.Height:
		return OrientationPortrait
	default:
		return OrientationSquare
	}
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Orientation describes whether media is wider than tall.
type Orientation string

const (
	OrientationPortrait  Orientation = "Portrait"
	OrientationLandscape Orientation = "Landscape"
	OrientationSquare    Orientation = "Square"
)
